package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StoreMetrics struct {
	Checkouts     *prometheus.CounterVec
	Callbacks     *prometheus.CounterVec
	PushLatencyMS prometheus.Histogram
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hoodiehub",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hoodiehub",
		Name:      "payment_callbacks_total",
		Help:      "Gateway callbacks by reconciliation outcome.",
	}, []string{"outcome"})
	pushLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hoodiehub",
		Name:      "stk_push_duration_ms",
		Help:      "STK push round trip latency in milliseconds.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
	reg.MustRegister(checkouts, callbacks, pushLatency)
	return &StoreMetrics{Checkouts: checkouts, Callbacks: callbacks, PushLatencyMS: pushLatency}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
