package sql

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the Stats of a StatsDriver as Prometheus metrics.
type Collector struct {
	stats    *Stats
	queries  *prometheus.Desc
	execs    *prometheus.Desc
	duration *prometheus.Desc
	slow     *prometheus.Desc
	errors   *prometheus.Desc
}

// NewCollector returns a collector reading from stats. Metric names are
// prefixed with namespace.
func NewCollector(namespace string, stats *Stats) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", name), help, nil, nil)
	}
	return &Collector{
		stats:    stats,
		queries:  desc("queries_total", "Total number of read queries executed."),
		execs:    desc("execs_total", "Total number of write statements executed."),
		duration: desc("duration_seconds_total", "Total time spent executing statements."),
		slow:     desc("slow_queries_total", "Statements slower than the configured threshold."),
		errors:   desc("errors_total", "Statements that returned an error."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queries
	ch <- c.execs
	ch <- c.duration
	ch <- c.slow
	ch <- c.errors
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.Reads))
	ch <- prometheus.MustNewConstMetric(c.execs, prometheus.CounterValue, float64(s.Writes))
	ch <- prometheus.MustNewConstMetric(c.duration, prometheus.CounterValue, s.Duration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.slow, prometheus.CounterValue, float64(s.Slow))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
}

var _ prometheus.Collector = (*Collector)(nil)
