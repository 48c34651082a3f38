// Package logging provides structured logging for the jailer.
//
// This package wraps github.com/sirupsen/logrus for leveled, structured
// logging. It supports both text and JSON output formats, and integrates
// with context.Context for request-scoped (per-connection) logging.
package logging

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ctxKey is the context key for the logger.
type ctxKey struct{}

var (
	// defaultLogger is the global logger instance.
	defaultLogger *logrus.Logger
	// loggerMu protects defaultLogger.
	loggerMu sync.RWMutex
)

func init() {
	defaultLogger = logrus.New()
	defaultLogger.SetOutput(os.Stderr)
	defaultLogger.SetLevel(logrus.InfoLevel)
}

// Config holds the logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level logrus.Level
	// Format is the output format ("text" or "json").
	Format string
	// Output is the log output destination.
	Output io.Writer
	// AddSource adds caller file/line information to log entries.
	AddSource bool
}

// NewLogger creates a new structured logger with the given configuration.
func NewLogger(cfg Config) *logrus.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(cfg.Output)
	l.SetLevel(cfg.Level)
	l.SetReportCaller(cfg.AddSource)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	return l
}

// SetDefault sets the default global logger.
func SetDefault(logger *logrus.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// Default returns the default global logger.
func Default() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// WithChild returns an entry tagged with the child's pid.
func WithChild(logger *logrus.Logger, pid int) *logrus.Entry {
	return logger.WithField("child_pid", pid)
}

// WithOperation returns an entry tagged with the current operation.
func WithOperation(logger *logrus.Logger, op string) *logrus.Entry {
	return logger.WithField("operation", op)
}

// WithRemoteAddr returns an entry tagged with the peer address.
func WithRemoteAddr(logger *logrus.Logger, addr string) *logrus.Entry {
	return logger.WithField("remote_addr", addr)
}

// WithPath returns an entry tagged with a filesystem path.
func WithPath(logger *logrus.Logger, path string) *logrus.Entry {
	return logger.WithField("path", path)
}

// ContextWithLogger returns a new context with the logger attached.
func ContextWithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves the logger from context.
// If no logger is found, returns the default logger.
func FromContext(ctx context.Context) *logrus.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*logrus.Logger); ok {
		return logger
	}
	return Default()
}

// ParseLevel parses a log level string into a logrus.Level.
// Valid values: "debug", "info", "warn", "error". Returns InfoLevel for
// invalid values.
func ParseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Helper functions for common log patterns.

// Info logs an info message using the default logger.
func Info(args ...any) { Default().Info(args...) }

// Warn logs a warning message using the default logger.
func Warn(args ...any) { Default().Warn(args...) }

// Error logs an error message using the default logger.
func Error(args ...any) { Default().Error(args...) }

// Debug logs a debug message using the default logger.
func Debug(args ...any) { Default().Debug(args...) }

// InfoContext logs an info message using the logger from context.
func InfoContext(ctx context.Context, args ...any) { FromContext(ctx).Info(args...) }

// WarnContext logs a warning message using the logger from context.
func WarnContext(ctx context.Context, args ...any) { FromContext(ctx).Warn(args...) }

// ErrorContext logs an error message using the logger from context.
func ErrorContext(ctx context.Context, args ...any) { FromContext(ctx).Error(args...) }

// DebugContext logs a debug message using the logger from context.
func DebugContext(ctx context.Context, args ...any) { FromContext(ctx).Debug(args...) }
