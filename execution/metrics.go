package execution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts contract calls. A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the call metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flagstore",
			Subsystem: "vm",
			Name:      "calls_total",
			Help:      "Contract calls by entry point and outcome.",
		}, []string{"entry", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flagstore",
			Subsystem: "vm",
			Name:      "call_duration_seconds",
			Help:      "Contract call latency by entry point.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"entry"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

func (m *Metrics) observe(entry string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(entry, outcome).Inc()
	m.duration.WithLabelValues(entry).Observe(time.Since(start).Seconds())
}

// Calls returns the counter for entry and outcome ("ok" or "error").
func (m *Metrics) Calls(entry, outcome string) prometheus.Counter {
	return m.calls.WithLabelValues(entry, outcome)
}
