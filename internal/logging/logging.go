package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logr verbosity levels. V(DEBUG) carries one record per optimizer
// iteration, V(TRACE) one record per Jacobian column.
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// ParseLevel maps a level name onto a zap level. Debug and trace map to
// negative zap levels so logr V(n) records pass through.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.Level(-1 * DEBUG), nil
	case "trace":
		return zapcore.Level(-1 * TRACE), nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", name)
	}
}

// NewLogger builds a zap-backed logr.Logger. Development mode writes
// console output with callers, otherwise JSON is written to stderr.
func NewLogger(level string, development bool) (logr.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger creates a new Zap logger using the dev mode.
func NewTestLogger() logr.Logger {
	zl := zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(zapcore.AddSync(discard{})),
			zap.NewAtomicLevelAt(zapcore.Level(-1*TRACE)),
		),
		zap.AddCaller(),
	)
	return zapr.NewLogger(zl)
}

// IntoContext stores the logger in ctx.
func IntoContext(ctx context.Context, log logr.Logger) context.Context {
	return logr.NewContext(ctx, log)
}

// FromContext returns the logger stored in ctx, or a discarding logger.
func FromContext(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
