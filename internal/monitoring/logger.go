// Package monitoring provides the shared log streams used by the
// clustering packages.
//
// Three streams are exposed:
//   - Opsf: actionable warnings and lifecycle events (zap Warn level)
//   - Diagf: parameter summaries and per-run statistics (zap Info level)
//   - Tracef: per-group and per-cluster detail (zap Debug level)
//
// The streams are muted until SetLogger is called.
package monitoring

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

// NewLogger builds a zap logger. Debug selects the development config,
// which also enables the trace stream.
func NewLogger(debug bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	return l, nil
}

// SetLogger installs the logger behind all streams. Passing nil mutes them.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		logger = nil
		return
	}
	logger = l.Sugar()
}

// Logger returns the installed sugared logger, or a no-op logger.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop().Sugar()
	}
	return logger
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l
}

// Opsf logs to the ops stream (actionable warnings, errors, lifecycle events).
func Opsf(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Warnf(format, args...)
	}
}

// Diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func Diagf(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Infof(format, args...)
	}
}

// Tracef logs to the trace stream (high-frequency per-group telemetry).
func Tracef(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Debugf(format, args...)
	}
}
