package kdgo

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with kdgo-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithTree adds the tree name and build identifier to the logger.
func (l *Logger) WithTree(name, id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("tree", name, "tree_id", id),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogBuild logs a tree construction.
func (l *Logger) LogBuild(ctx context.Context, points, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"points", points,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "build completed",
			"points", points,
			"dimension", dimension,
		)
	}
}

// LogSearch logs a query. k is zero for radius searches.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogBatch logs a batch of queries.
func (l *Logger) LogBatch(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch search completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch search completed",
			"count", count,
		)
	}
}

// LogSave logs a save to a blob store.
func (l *Logger) LogSave(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "tree saved",
			"name", name,
			"bytes", bytes,
		)
	}
}

// LogLoad logs a load from a blob store.
func (l *Logger) LogLoad(ctx context.Context, name string, points int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "tree loaded",
			"name", name,
			"points", points,
		)
	}
}

// LogPublish logs an update of the CURRENT pointer.
func (l *Logger) LogPublish(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "tree published",
			"name", name,
		)
	}
}
