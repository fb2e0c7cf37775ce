package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the attendance engine.
type Metrics struct {
	CheckIns      prometheus.Counter
	CheckOuts     prometheus.Counter
	GateFailures  *prometheus.CounterVec
	ChainDuration prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "punchd_check_ins_total",
			Help: "Total successful check-ins",
		}),
		CheckOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "punchd_check_outs_total",
			Help: "Total successful check-outs",
		}),
		GateFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "punchd_gate_failures_total",
			Help: "Gate chain aborts by reason",
		}, []string{"reason"}),
		ChainDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "punchd_gate_chain_duration_seconds",
			Help:    "Latency of complete check-in/check-out gate chains",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// RecordCheckIn increments the successful check-in counter.
func (m *Metrics) RecordCheckIn() {
	if m == nil {
		return
	}
	m.CheckIns.Inc()
}

// RecordCheckOut increments the successful check-out counter.
func (m *Metrics) RecordCheckOut() {
	if m == nil {
		return
	}
	m.CheckOuts.Inc()
}

// RecordGateFailure counts an aborted gate chain by reason label.
func (m *Metrics) RecordGateFailure(reason string) {
	if m == nil {
		return
	}
	m.GateFailures.WithLabelValues(reason).Inc()
}

// ObserveChainDuration records one gate chain's latency in seconds.
func (m *Metrics) ObserveChainDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ChainDuration.Observe(seconds)
}
