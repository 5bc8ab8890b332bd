package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersFailed.Inc()
	prom.Metrics.OrdersUnconfirmed.Inc()
	prom.Metrics.BudgetExceeded.Inc()
	prom.Metrics.SignalsBuy.Inc()
	prom.Metrics.SignalsSell.Inc()
	prom.Metrics.SymbolsSkipped.Inc()
	prom.Metrics.StopsTightened.Inc()
	prom.Metrics.CyclesCompleted.Inc()

	assertCounter(t, prom.ordersPlaced, 1)
	assertCounter(t, prom.ordersFailed, 1)
	assertCounter(t, prom.ordersUnconfirmed, 1)
	assertCounter(t, prom.budgetExceeded, 1)
	assertCounter(t, prom.signalsBuy, 1)
	assertCounter(t, prom.signalsSell, 1)
	assertCounter(t, prom.symbolsSkipped, 1)
	assertCounter(t, prom.stopsTightened, 1)
	assertCounter(t, prom.cyclesCompleted, 1)
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
