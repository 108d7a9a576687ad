// Package prometheus exports kdgo operation metrics to Prometheus.
//
//	c := prometheus.NewCollector("kdgo")
//	registry.MustRegister(c)
//	tree, err := kdgo.Build(points, n, dims, kdgo.WithMetricsCollector(c))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Collector implements kdgo.MetricsCollector and prometheus.Collector.
type Collector struct {
	operations    *prom.CounterVec
	latency       *prom.HistogramVec
	buildPoints   prom.Histogram
	searchResults prom.Histogram
	batchQueries  *prom.CounterVec
	savedBytes    prom.Counter
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Tree operations by type and outcome.",
		}, []string{"op", "status"}),
		latency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of tree operations.",
			Buckets:   prom.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		buildPoints: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_points",
			Help:      "Number of points per built tree.",
			Buckets:   prom.ExponentialBuckets(16, 4, 10),
		}),
		searchResults: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of hits per query.",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}),
		batchQueries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "batch_queries_total",
			Help:      "Queries run in batches by outcome.",
		}, []string{"status"}),
		savedBytes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "saved_bytes_total",
			Help:      "Bytes written by saves.",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.operations.WithLabelValues(op, status(err)).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordBuild(points int, duration time.Duration, err error) {
	c.observe("build", duration, err)
	if err == nil {
		c.buildPoints.Observe(float64(points))
	}
}

func (c *Collector) RecordSearch(k, results int, duration time.Duration, err error) {
	op := "nearest"
	if k == 0 {
		op = "range"
	}
	c.observe(op, duration, err)
	if err == nil {
		c.searchResults.Observe(float64(results))
	}
}

func (c *Collector) RecordBatch(count, failed int, duration time.Duration) {
	var err error
	if failed > 0 {
		err = errFailed
	}
	c.observe("batch", duration, err)
	c.batchQueries.WithLabelValues("error").Add(float64(failed))
	c.batchQueries.WithLabelValues("success").Add(float64(max(count-failed, 0)))
}

func (c *Collector) RecordSave(bytes int64, duration time.Duration, err error) {
	c.observe("save", duration, err)
	c.savedBytes.Add(float64(bytes))
}

func (c *Collector) RecordLoad(duration time.Duration, err error) {
	c.observe("load", duration, err)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, m := range c.collectors() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	for _, m := range c.collectors() {
		m.Collect(ch)
	}
}

func (c *Collector) collectors() []prom.Collector {
	return []prom.Collector{c.operations, c.latency, c.buildPoints, c.searchResults, c.batchQueries, c.savedBytes}
}
