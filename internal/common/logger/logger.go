package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger with a fixed service field and
// action-oriented log calls.
type Logger struct {
	zl zerolog.Logger
}

// console is decided once in Setup; every New after that honors it.
var console bool

// Setup configures the global zerolog defaults once per process, before the
// first New.
func Setup(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	console = format == "console"
}

func New(service string) *Logger {
	if console {
		return NewConsole(service)
	}
	host, _ := os.Hostname()
	zl := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Str("hostname", host).
		Logger()
	return &Logger{zl: zl}
}

// NewConsole is the development variant with human-readable output.
func NewConsole(service string) *Logger {
	host, _ := os.Hostname()
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Str("service", service).
		Str("hostname", host).
		Logger()
	return &Logger{zl: zl}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.zl.Info().Str("action", action).Fields(fields).Msg(action)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.zl.Debug().Str("action", action).Fields(fields).Msg(action)
}

func (l *Logger) Warn(action string, fields map[string]any) {
	l.zl.Warn().Str("action", action).Fields(fields).Msg(action)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.zl.Error().Str("action", action).Err(err).Fields(fields).Msg(action)
}
