package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the leveled logging interface used across the service. Scoped
// loggers carry a module name and structured fields.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})

	WithModule(module string) Logger
	WithFields(fields map[string]interface{}) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

// NewLogger builds the root logger. Output goes to a console writer on
// stderr, and additionally to logFile when one is configured. Unknown
// levels fall back to info.
func NewLogger(level, logFile string) Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if logFile != "" {
		f, ferr := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr == nil {
			out = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, f)
		}
	}

	zl := zerolog.New(out).Level(parsed).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

func (l *zeroLogger) Debugf(format string, v ...interface{}) { l.zl.Debug().Msgf(format, v...) }
func (l *zeroLogger) Infof(format string, v ...interface{})  { l.zl.Info().Msgf(format, v...) }
func (l *zeroLogger) Warnf(format string, v ...interface{})  { l.zl.Warn().Msgf(format, v...) }
func (l *zeroLogger) Errorf(format string, v ...interface{}) { l.zl.Error().Msgf(format, v...) }
func (l *zeroLogger) Fatalf(format string, v ...interface{}) { l.zl.Fatal().Msgf(format, v...) }

func (l *zeroLogger) WithModule(module string) Logger {
	return &zeroLogger{zl: l.zl.With().Str("module", module).Logger()}
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(fields).Logger()}
}

type ctxKey struct{}

// NewContext attaches a logger to ctx.
func NewContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or a default info-level
// logger when none is present.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return NewLogger("info", "")
}
