package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the output shared by every logger created with New.
type Options struct {
	// Level is the minimum level, e.g. "debug" or "warn".
	Level string `json:"level"`
	// Format is "json" or "console".
	Format string `json:"format"`
	// File additionally writes JSON lines to a rotated file when set.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

var (
	setupMu    sync.RWMutex
	configured bool
	outWriter  io.Writer
	outLevel   string
)

// Setup sets the output of loggers created afterwards. The returned closer
// releases the log file, if any.
func Setup(o Options) io.Closer {
	var w io.Writer = os.Stdout
	if strings.EqualFold(o.Format, "console") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	var closer io.Closer = nopCloser{}
	if o.File != "" {
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		}
		w = io.MultiWriter(w, lj)
		closer = lj
	}
	setupMu.Lock()
	configured, outWriter, outLevel = true, w, o.Level
	setupMu.Unlock()
	return closer
}

func output() (io.Writer, string, bool) {
	setupMu.RLock()
	defer setupMu.RUnlock()
	return outWriter, outLevel, configured
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
