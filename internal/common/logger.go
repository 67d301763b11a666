package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
)

// LoggerKey is the context key for logger values.
type LoggerKey struct{}

// Fields represents structured logging fields.
type Fields map[string]any

// NewLogger builds a logger writing to w. format is "json", or "console"
// (also "text" or empty) for key=value lines.
func NewLogger(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "console", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, format)
	}
}

// SetupLogger installs a stderr logger as the slog default.
func SetupLogger(level slog.Level, format string) error {
	logger, err := NewLogger(os.Stderr, level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey{}, logger)
}

// LoggerFromContext returns the logger stored in ctx, or the default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(LoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// LogError logs err at error level.
func LogError(ctx context.Context, err error, msg string, fields Fields) {
	logAt(ctx, slog.LevelError, err, msg, fields)
}

// LogWarn logs a recoverable failure.
func LogWarn(ctx context.Context, err error, msg string, fields Fields) {
	logAt(ctx, slog.LevelWarn, err, msg, fields)
}

// LogInfo logs at info level.
func LogInfo(ctx context.Context, msg string, fields Fields) {
	logAt(ctx, slog.LevelInfo, nil, msg, fields)
}

// LogDebug logs at debug level.
func LogDebug(ctx context.Context, msg string, fields Fields) {
	logAt(ctx, slog.LevelDebug, nil, msg, fields)
}

// logAt emits fields in key order so lines stay stable across runs.
func logAt(ctx context.Context, level slog.Level, err error, msg string, fields Fields) {
	logger := LoggerFromContext(ctx)
	if ctx == nil {
		ctx = context.Background()
	}
	if !logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+1)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	logger.LogAttrs(ctx, level, msg, attrs...)
}
