package observability

import (
	"context"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/templatemart/api/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// NewLogger builds the JSON logger used in Cloud Run. LOG_LEVEL overrides the level.
func NewLogger() (*zap.Logger, error) {
	return newLogger(os.Getenv("LOG_LEVEL"), []string{"stdout"})
}

func newLogger(rawLevel string, outputs []string) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(rawLevel)))); err != nil || strings.TrimSpace(rawLevel) == "" {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	cfg := zap.Config{
		Level:    level,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			NameKey:       "logger",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
			EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(strings.ToUpper(level.String()))
			},
		},
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// PrintfAdapter adapts zap to printf-style logging interfaces.
type PrintfAdapter struct {
	logger *zap.SugaredLogger
}

// NewPrintfAdapter creates a PrintfAdapter backed by the supplied logger.
func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{logger: logger.Sugar()}
}

// Printf implements the Printf-style logging expected by auth helpers.
func (a PrintfAdapter) Printf(format string, args ...any) {
	a.logger.Infof(format, args...)
}

// Sanitize strips control characters and truncates value to limit runes.
func Sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == limit {
			break
		}
	}
	return string(cleaned)
}
