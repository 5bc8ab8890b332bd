package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	OrdersPlaced      Counter
	OrdersFailed      Counter
	OrdersUnconfirmed Counter
	BudgetExceeded    Counter
	SignalsBuy        Counter
	SignalsSell       Counter
	SymbolsSkipped    Counter
	StopsTightened    Counter
	CyclesCompleted   Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		OrdersPlaced:      n,
		OrdersFailed:      n,
		OrdersUnconfirmed: n,
		BudgetExceeded:    n,
		SignalsBuy:        n,
		SignalsSell:       n,
		SymbolsSkipped:    n,
		StopsTightened:    n,
		CyclesCompleted:   n,
	}
}
