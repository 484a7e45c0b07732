package chunkcpd

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with segmentation-specific context.
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

// WithChunk adds a chunk id field to the logger.
func (l *Logger) WithChunk(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("chunk_id", id),
	}
}

// WithSamples adds a sample count field to the logger.
func (l *Logger) WithSamples(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("samples", n),
	}
}

// WithDetector adds the detector description to the logger.
func (l *Logger) WithDetector(desc string) *Logger {
	return &Logger{
		Logger: l.Logger.With("detector", desc),
	}
}

// LogSplit logs the chunk layout of a dataset.
func (l *Logger) LogSplit(ctx context.Context, samples, chunks, overlap int) {
	l.DebugContext(ctx, "dataset split",
		"samples", samples,
		"chunks", chunks,
		"overlap", overlap,
	)
}

// LogMerge logs the merge of chunk results.
func (l *Logger) LogMerge(ctx context.Context, chunks, positions int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed",
			"chunks", chunks,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "merge completed",
			"chunks", chunks,
			"positions", positions,
		)
	}
}

// LogFilter logs the adaptive filter pass.
func (l *Logger) LogFilter(ctx context.Context, before, after, minDistance int) {
	l.DebugContext(ctx, "close change points filtered",
		"before", before,
		"after", after,
		"min_distance", minDistance,
	)
}

// LogSegment logs a complete segmentation.
func (l *Logger) LogSegment(ctx context.Context, samples, changePoints int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segmentation failed",
			"samples", samples,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "segmentation completed",
			"samples", samples,
			"change_points", changePoints,
			"duration", duration,
		)
	}
}
