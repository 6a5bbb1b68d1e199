// Package prommetrics exports isvd metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, err := prommetrics.NewCollector(reg)
//	inc, err := isvd.New(dim, isvd.WithMetricsCollector(mc))
//
// Every rank of a group may share one Collector; label the registry with
// prometheus.WrapRegistererWith to tell ranks apart.
package prommetrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/isvd"
)

const namespace = "isvd"

// Collector implements isvd.MetricsCollector with Prometheus metrics.
type Collector struct {
	increments      *prometheus.CounterVec
	incrementTime   *prometheus.HistogramVec
	reorths         prometheus.Counter
	reorthTime      prometheus.Histogram
	deviation       prometheus.Gauge
	intervalsClosed prometheus.Counter
	closedRank      prometheus.Histogram
}

var _ isvd.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		increments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "increments_total",
			Help:      "Samples processed, by outcome and status",
		}, []string{"outcome", "status"}),
		incrementTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "increment_duration_seconds",
			Help:      "Latency of increments",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"status"}),
		reorths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reorthogonalizations_total",
			Help:      "Basis repairs performed",
		}),
		reorthTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reorthogonalization_duration_seconds",
			Help:      "Latency of basis repairs",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		deviation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orthogonality_deviation",
			Help:      "Deviation that triggered the most recent basis repair",
		}),
		intervalsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intervals_closed_total",
			Help:      "Time intervals closed",
		}),
		closedRank: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "closed_interval_rank",
			Help:      "Basis rank of closed intervals",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	for _, m := range []prometheus.Collector{
		c.increments, c.incrementTime, c.reorths, c.reorthTime,
		c.deviation, c.intervalsClosed, c.closedRank,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	var ne *isvd.NumericalError
	if errors.As(err, &ne) {
		return "degenerate"
	}
	return "error"
}

// RecordIncrement implements isvd.MetricsCollector.
func (c *Collector) RecordIncrement(outcome isvd.Outcome, d time.Duration, err error) {
	st := status(err)
	label := outcome.String()
	if err != nil {
		label = "none"
	}
	c.increments.WithLabelValues(label, st).Inc()
	c.incrementTime.WithLabelValues(st).Observe(d.Seconds())
}

// RecordReorthogonalization implements isvd.MetricsCollector.
func (c *Collector) RecordReorthogonalization(deviation float64, d time.Duration) {
	c.reorths.Inc()
	c.reorthTime.Observe(d.Seconds())
	c.deviation.Set(deviation)
}

// RecordIntervalClosed implements isvd.MetricsCollector.
func (c *Collector) RecordIntervalClosed(rank int) {
	c.intervalsClosed.Inc()
	c.closedRank.Observe(float64(rank))
}
