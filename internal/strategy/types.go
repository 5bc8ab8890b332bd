package strategy

import "time"

type Direction string

const (
	Buy     Direction = "Buy"
	Sell    Direction = "Sell"
	NoTrade Direction = "NoTrade"
)

// TradeSignal is produced per evaluation and never stored.
type TradeSignal struct {
	Symbol     string
	Direction  Direction
	Confidence float64
	HasScore   bool
}

// FeatureSnapshot is the per-symbol indicator vector at one point in time.
// Produced by the upstream indicator layer; consumed read-only here.
type FeatureSnapshot struct {
	Symbol   string
	Time     time.Time
	Features map[string]float64
	Close    float64
}

// TradeLevels carries the protective levels for an order. The take-profit
// ladder is monotonic in the trade direction and the stop sits on the
// opposite side of entry.
type TradeLevels struct {
	Entry        float64
	Side         Direction
	TP1          float64
	TP2          float64
	TP3          float64
	StopLoss     float64
	TrailingStop float64
}

type State string

type Event string

const (
	StateIdle       State = "IDLE"
	StateEvaluating State = "EVALUATING"
	StateSizing     State = "SIZING"
	StateSubmitting State = "SUBMITTING"
	StateOpen       State = "OPEN"
	StateClosed     State = "CLOSED"
)

const (
	EventDispatch Event = "DISPATCH"
	EventSignal   Event = "SIGNAL"
	EventSized    Event = "SIZED"
	EventAccepted Event = "ACCEPTED"
	EventSkip     Event = "SKIP"
	EventClosed   Event = "CLOSED"
	EventReset    Event = "RESET"
)
