// Package logging holds the process-wide zerolog logger shared by the athenaq packages.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu     sync.RWMutex
	out    io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	level            = LevelWarn
	logger           = build(out, level)
)

func build(w io.Writer, lv Level) zerolog.Logger {
	return zerolog.New(w).Level(lv.zerolog()).With().Timestamp().Str("component", "athenaq").Logger()
}

func (lv Level) zerolog() zerolog.Level {
	switch lv {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" to a Level; anything else is LevelInfo.
func ParseLevel(s string) Level {
	lv, err := zerolog.ParseLevel(s)
	if err != nil {
		return LevelInfo
	}
	switch lv {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return LevelDebug
	case zerolog.WarnLevel:
		return LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel overrides the log level, default is WARN.
func SetLevel(lv Level) {
	mu.Lock()
	defer mu.Unlock()
	level = lv
	logger = build(out, level)
}

// SetOutput redirects log output, e.g. to a buffer in tests or plain JSON for servers.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = build(out, level)
}

// Logger returns the current logger for structured events.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

func Debugf(format string, v ...interface{}) {
	Logger().Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	Logger().Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Logger().Warn().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Logger().Error().Msgf(format, v...)
}
