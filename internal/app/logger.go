package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging shape every component accepts.
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type NoopLogger struct{}

func (NoopLogger) Infof(component, format string, args ...interface{})  {}
func (NoopLogger) Errorf(component, format string, args ...interface{}) {}

// ZeroLogger adapts a zerolog.Logger to Logger, recording the component as
// a field.
type ZeroLogger struct{ log zerolog.Logger }

// NewZeroLogger writes JSON lines to w, or human readable lines when
// console is set. Unknown levels fall back to info.
func NewZeroLogger(w io.Writer, level string, console bool) ZeroLogger {
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return ZeroLogger{log: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func (l ZeroLogger) Infof(component string, format string, args ...interface{}) {
	l.log.Info().Str("component", component).Msgf(format, args...)
}

func (l ZeroLogger) Errorf(component string, format string, args ...interface{}) {
	l.log.Error().Str("component", component).Msgf(format, args...)
}

// Zerolog exposes the underlying logger for libraries that take one.
func (l ZeroLogger) Zerolog() zerolog.Logger { return l.log }
