// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewZapLogger builds the zap logger used by the server binary. Development
// mode uses the console encoder; otherwise JSON at the given level
// ("debug", "info", "warn", "error").
func NewZapLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// UseZap routes Logf through l at info level and returns a function that
// flushes l. Callers defer the returned function.
func UseZap(l *zap.Logger) func() {
	sugar := l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	SetLogger(sugar.Infof)
	return func() { _ = l.Sync() }
}
