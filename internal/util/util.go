package util

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
)

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	sugar.Store(zap.NewNop().Sugar())
}

// NewLogger builds the process logger. Production mode emits JSON, otherwise
// a colourised console encoder is used.
func NewLogger(production bool, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// SetLogger replaces the logger behind the Log* helpers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	sugar.Store(l.Sugar())
}

// Logger returns the structured logger behind the Log* helpers.
func Logger() *zap.Logger {
	return sugar.Load().Desugar()
}

func LogInfo(format string, v ...any) {
	sugar.Load().Infof(format, v...)
}

func LogWarn(format string, v ...any) {
	sugar.Load().Warnf(format, v...)
}

func LogError(format string, v ...any) {
	sugar.Load().Errorf(format, v...)
}

func LogFatal(format string, v ...any) {
	sugar.Load().Fatalf(format, v...)
}

// RequestID extracts the id stored by the request-id middleware, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	reqID, _ := ctx.Value(constants.RequestIDKey).(string)
	return reqID
}

// WithRequestID prefixes format with the request id carried by ctx, if any.
func WithRequestID(ctx context.Context, format string) string {
	if reqID := RequestID(ctx); reqID != "" {
		return "[request_id=" + reqID + "] " + format
	}
	return format
}
