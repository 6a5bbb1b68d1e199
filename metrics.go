package isvd

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; package prommetrics ships such an implementation.
type MetricsCollector interface {
	// RecordIncrement is called after each increment.
	// outcome is meaningful only when err is nil.
	RecordIncrement(outcome Outcome, duration time.Duration, err error)

	// RecordReorthogonalization is called after each basis repair with the
	// deviation that triggered it.
	RecordReorthogonalization(deviation float64, duration time.Duration)

	// RecordIntervalClosed is called when a time interval is closed with its
	// final basis rank.
	RecordIntervalClosed(rank int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIncrement(Outcome, time.Duration, error)    {}
func (NoopMetricsCollector) RecordReorthogonalization(float64, time.Duration) {}
func (NoopMetricsCollector) RecordIntervalClosed(int)                         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IncrementCount      atomic.Int64
	IncrementErrors     atomic.Int64
	IncrementTotalNanos atomic.Int64
	InitialCount        atomic.Int64
	NewCount            atomic.Int64
	RedundantCount      atomic.Int64
	SkippedCount        atomic.Int64
	ReorthCount         atomic.Int64
	maxDeviationBits    atomic.Uint64
	IntervalsClosed     atomic.Int64
}

// RecordIncrement implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIncrement(outcome Outcome, duration time.Duration, err error) {
	b.IncrementCount.Add(1)
	b.IncrementTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IncrementErrors.Add(1)
		return
	}
	switch outcome {
	case OutcomeInitial:
		b.InitialCount.Add(1)
	case OutcomeNew:
		b.NewCount.Add(1)
	case OutcomeRedundant:
		b.RedundantCount.Add(1)
	case OutcomeSkipped:
		b.SkippedCount.Add(1)
	}
}

// RecordReorthogonalization implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReorthogonalization(deviation float64, duration time.Duration) {
	b.ReorthCount.Add(1)
	for {
		old := b.maxDeviationBits.Load()
		if deviation <= math.Float64frombits(old) {
			return
		}
		if b.maxDeviationBits.CompareAndSwap(old, math.Float64bits(deviation)) {
			return
		}
	}
}

// RecordIntervalClosed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIntervalClosed(int) {
	b.IntervalsClosed.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IncrementCount:     b.IncrementCount.Load(),
		IncrementErrors:    b.IncrementErrors.Load(),
		IncrementAvgNanos:  b.getAvgIncrementNanos(),
		InitialCount:       b.InitialCount.Load(),
		NewCount:           b.NewCount.Load(),
		RedundantCount:     b.RedundantCount.Load(),
		SkippedCount:       b.SkippedCount.Load(),
		ReorthCount:        b.ReorthCount.Load(),
		MaxReorthDeviation: math.Float64frombits(b.maxDeviationBits.Load()),
		IntervalsClosed:    b.IntervalsClosed.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgIncrementNanos() int64 {
	count := b.IncrementCount.Load()
	if count == 0 {
		return 0
	}
	return b.IncrementTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IncrementCount     int64
	IncrementErrors    int64
	IncrementAvgNanos  int64
	InitialCount       int64
	NewCount           int64
	RedundantCount     int64
	SkippedCount       int64
	ReorthCount        int64
	MaxReorthDeviation float64
	IntervalsClosed    int64
}
