package isvd

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with isvd-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRank adds the worker rank to the logger.
func (l *Logger) WithRank(rank int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank),
	}
}

// WithInterval adds a time interval index to the logger.
func (l *Logger) WithInterval(index int) *Logger {
	return &Logger{
		Logger: l.Logger.With("interval", index),
	}
}

// LogIncrement logs the outcome of an increment.
func (l *Logger) LogIncrement(ctx context.Context, t float64, res Result, err error) {
	if err != nil {
		var ne *NumericalError
		if errors.As(err, &ne) {
			l.LogDegenerate(ctx, ne)
			return
		}
		l.ErrorContext(ctx, "increment failed",
			"time", t,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "increment completed",
		"time", t,
		"outcome", res.Outcome.String(),
		"interval", res.Interval,
		"basis_rank", res.Rank,
		"norm_u", res.NormU,
		"norm_j", res.NormJ,
	)
}

// LogIntervalClosed logs the closing of a time interval.
func (l *Logger) LogIntervalClosed(ctx context.Context, index, rank, samples int, start float64) {
	l.InfoContext(ctx, "time interval closed",
		"interval", index,
		"basis_rank", rank,
		"samples", samples,
		"start_time", start,
	)
}

// LogReorthogonalize logs a basis repair.
func (l *Logger) LogReorthogonalize(ctx context.Context, interval int, deviation float64, err error) {
	if err != nil {
		l.WarnContext(ctx, "reorthogonalization failed",
			"interval", interval,
			"deviation", deviation,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "basis reorthogonalized",
		"interval", interval,
		"deviation", deviation,
	)
}

// LogDegenerate logs a dropped degenerate sample.
func (l *Logger) LogDegenerate(ctx context.Context, ne *NumericalError) {
	l.WarnContext(ctx, "degenerate sample dropped",
		"op", ne.Op,
		"time", ne.Time,
		"reason", ne.Reason,
		"error", ne.Unwrap(),
	)
}

// LogPersist logs the upload of an interval basis. Use WithInterval to
// attach the interval index.
func (l *Logger) LogPersist(ctx context.Context, name string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "basis upload failed",
			"blob", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "basis persisted",
		"blob", name,
		"bytes", size,
	)
}
