package persist

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	dream "github.com/rvohealth/dream-sub006"
)

// Metrics counts writes by entity, operation and outcome.
type Metrics struct {
	writes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the write metrics and registers them with reg when
// it is not nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "writes_total",
				Help:      "Total number of record writes.",
			},
			[]string{"entity", "op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "write_duration_seconds",
				Help:      "Duration of record writes in seconds, hooks included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"entity", "op"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.writes, m.duration)
	}
	return m
}

// Writes returns the write counter.
func (m *Metrics) Writes() *prometheus.CounterVec { return m.writes }

func (m *Metrics) observe(entity string, op dream.Op, err error, noop bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case noop:
		outcome = "noop"
	}
	m.writes.WithLabelValues(entity, op.String(), outcome).Inc()
	m.duration.WithLabelValues(entity, op.String()).Observe(d.Seconds())
}
