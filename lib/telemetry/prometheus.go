package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachpo/sizedpool/lib/pool"
)

// StatsSource provides pool snapshots, for example a pool.Manager.
type StatsSource interface {
	Stats() []pool.Stats
}

// PrometheusCollector exposes pool snapshots as Prometheus gauges. It reads
// the source on every scrape.
type PrometheusCollector struct {
	source StatsSource

	size      *prometheus.Desc
	softLimit *prometheus.Desc
	hardLimit *prometheus.Desc
	used      *prometheus.Desc
	free      *prometheus.Desc
	freeKeys  *prometheus.Desc
	deleted   *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector builds a collector whose metric names are prefixed
// with namespace.
func NewPrometheusCollector(namespace string, source StatsSource) *PrometheusCollector {
	labels := []string{"pool"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, labels, nil)
	}
	return &PrometheusCollector{
		source:    source,
		size:      desc("size", "Accounted size of used and free values."),
		softLimit: desc("soft_limit", "Size above which free values are trimmed."),
		hardLimit: desc("hard_limit", "Size the pool never exceeds."),
		used:      desc("used_values", "Values currently borrowed."),
		free:      desc("free_values", "Values available for reuse."),
		freeKeys:  desc("free_keys", "Distinct keys with free values."),
		deleted:   desc("deleted", "1 when the pool has been deleted."),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.softLimit
	ch <- c.hardLimit
	ch <- c.used
	ch <- c.free
	ch <- c.freeKeys
	ch <- c.deleted
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.Stats() {
		deleted := 0.0
		if s.Deleted {
			deleted = 1
		}
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size), s.Name)
		ch <- prometheus.MustNewConstMetric(c.softLimit, prometheus.GaugeValue, float64(s.SoftLimit), s.Name)
		ch <- prometheus.MustNewConstMetric(c.hardLimit, prometheus.GaugeValue, float64(s.HardLimit), s.Name)
		ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(s.Used), s.Name)
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(s.Free), s.Name)
		ch <- prometheus.MustNewConstMetric(c.freeKeys, prometheus.GaugeValue, float64(s.FreeKeys), s.Name)
		ch <- prometheus.MustNewConstMetric(c.deleted, prometheus.GaugeValue, deleted, s.Name)
	}
}
