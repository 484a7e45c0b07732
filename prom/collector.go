// Package prom exports segmentation metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/chunkcpd"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "chunkcpd"

// Collector implements chunkcpd.MetricsCollector on Prometheus metrics.
type Collector struct {
	latency      *prometheus.HistogramVec
	samples      *prometheus.CounterVec
	changePoints *prometheus.CounterVec
	chunkErrors  prometheus.Counter
	merged       prometheus.Counter
	positions    prometheus.Gauge
}

var _ chunkcpd.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. A nil
// registerer selects prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of segmentation stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples processed per stage",
		}, []string{"op"}),
		changePoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_points_total",
			Help:      "Change points produced per stage",
		}, []string{"op"}),
		chunkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_errors_total",
			Help:      "Chunks whose detector run failed",
		}),
		merged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_chunks_total",
			Help:      "Chunk results merged into global change points",
		}),
		positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_merge_positions",
			Help:      "Distinct positions produced by the last merge",
		}),
	}

	for _, m := range []prometheus.Collector{c.latency, c.samples, c.changePoints, c.chunkErrors, c.merged, c.positions} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

// RecordChunk records one detector run. The chunk id is not used as a label
// to keep cardinality bounded.
func (c *Collector) RecordChunk(_ int, samples, changePoints int, d time.Duration, err error) {
	c.latency.WithLabelValues("chunk", status(err)).Observe(d.Seconds())
	c.samples.WithLabelValues("chunk").Add(float64(samples))

	if err != nil {
		c.chunkErrors.Inc()
		return
	}

	c.changePoints.WithLabelValues("chunk").Add(float64(changePoints))
}

// RecordMerge records the merge of all chunk results.
func (c *Collector) RecordMerge(chunks, positions int, d time.Duration) {
	c.latency.WithLabelValues("merge", status(nil)).Observe(d.Seconds())
	c.merged.Add(float64(chunks))
	c.positions.Set(float64(positions))
}

// RecordSegment records a whole segmentation.
func (c *Collector) RecordSegment(samples, changePoints int, d time.Duration, err error) {
	c.latency.WithLabelValues("segment", status(err)).Observe(d.Seconds())
	c.samples.WithLabelValues("segment").Add(float64(samples))

	if err == nil {
		c.changePoints.WithLabelValues("segment").Add(float64(changePoints))
	}
}
