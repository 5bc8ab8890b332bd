package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "bybit_scan_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry          *prometheus.Registry
	ordersPlaced      prometheus.Counter
	ordersFailed      prometheus.Counter
	ordersUnconfirmed prometheus.Counter
	budgetExceeded    prometheus.Counter
	signalsBuy        prometheus.Counter
	signalsSell       prometheus.Counter
	symbolsSkipped    prometheus.Counter
	stopsTightened    prometheus.Counter
	cyclesCompleted   prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed and confirmed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order submissions that terminally failed.",
	})
	ordersUnconfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_unconfirmed_total",
		Help:      "Total number of orders accepted without an identifier.",
	})
	budgetExceeded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "budget_exceeded_total",
		Help:      "Total number of evaluations skipped by the open-trade budget.",
	})
	signalsBuy := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "signals_buy_total",
		Help:      "Total number of Buy signals produced.",
	})
	signalsSell := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "signals_sell_total",
		Help:      "Total number of Sell signals produced.",
	})
	symbolsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "symbols_skipped_total",
		Help:      "Total number of symbols skipped for missing market data.",
	})
	stopsTightened := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "stops_tightened_total",
		Help:      "Total number of stop-loss amendments applied.",
	})
	cyclesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_completed_total",
		Help:      "Total number of scan cycles fully drained.",
	})

	registry.MustRegister(ordersPlaced, ordersFailed, ordersUnconfirmed, budgetExceeded,
		signalsBuy, signalsSell, symbolsSkipped, stopsTightened, cyclesCompleted)

	m := &Metrics{
		OrdersPlaced:      promCounter{ordersPlaced},
		OrdersFailed:      promCounter{ordersFailed},
		OrdersUnconfirmed: promCounter{ordersUnconfirmed},
		BudgetExceeded:    promCounter{budgetExceeded},
		SignalsBuy:        promCounter{signalsBuy},
		SignalsSell:       promCounter{signalsSell},
		SymbolsSkipped:    promCounter{symbolsSkipped},
		StopsTightened:    promCounter{stopsTightened},
		CyclesCompleted:   promCounter{cyclesCompleted},
	}

	return &Prometheus{
		Metrics:           m,
		registry:          registry,
		ordersPlaced:      ordersPlaced,
		ordersFailed:      ordersFailed,
		ordersUnconfirmed: ordersUnconfirmed,
		budgetExceeded:    budgetExceeded,
		signalsBuy:        signalsBuy,
		signalsSell:       signalsSell,
		symbolsSkipped:    symbolsSkipped,
		stopsTightened:    stopsTightened,
		cyclesCompleted:   cyclesCompleted,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
