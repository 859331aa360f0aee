package logger

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger using the output installed by
// Setup. Without Setup it writes to stdout and APP_ENV=dev switches to the
// human readable console writer.
func NewZerologLogger(component string) Logger {
	if w, level, ok := output(); ok {
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			level = env
		}
		return NewWithWriter(w, component, level)
	}
	var w io.Writer = os.Stdout
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(w, component, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter creates a ZerologLogger writing JSON lines to w. An empty or
// invalid level keeps zerolog's debug default.
func NewWithWriter(w io.Writer, component, level string) *ZerologLogger {
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	if level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			z = z.Level(lvl)
		}
	}
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

// Debugw adds fields in key order so output is stable.
func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ev := l.log.Debug()
	for _, k := range keys {
		ev = ev.Interface(k, fields[k])
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
