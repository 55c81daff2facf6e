package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xiaoyuanzhu-com/filehistory/config"
)

var (
	logger     zerolog.Logger
	loggerLock sync.RWMutex
)

func init() {
	cfg := config.Get()

	// Configure output based on environment
	var output io.Writer
	if cfg.IsDevelopment() {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	} else {
		// JSON output for production
		output = os.Stdout
	}

	logger = zerolog.New(output).
		Level(parseLogLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Logger()
}

// SetLevel sets the global log level at runtime
func SetLevel(levelStr string) {
	level := parseLogLevel(levelStr)
	loggerLock.Lock()
	logger = logger.Level(level)
	loggerLock.Unlock()
}

// SetOutput redirects the global logger, keeping its level. Tests use it to
// capture log lines.
func SetOutput(w io.Writer) {
	loggerLock.Lock()
	logger = logger.Output(w)
	loggerLock.Unlock()
}

// parseLogLevel converts a string log level to zerolog.Level
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	loggerLock.RLock()
	defer loggerLock.RUnlock()
	return logger
}

// Debug logs a debug message
func Debug() *zerolog.Event {
	l := current()
	return l.Debug()
}

// Info logs an info message
func Info() *zerolog.Event {
	l := current()
	return l.Info()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	l := current()
	return l.Warn()
}

// Error logs an error message
func Error() *zerolog.Event {
	l := current()
	return l.Error()
}

// Fatal logs a fatal message and exits
func Fatal() *zerolog.Event {
	l := current()
	return l.Fatal()
}

// Logger returns the underlying zerolog.Logger for integrations
func Logger() zerolog.Logger {
	return current()
}

// zerologWriter adapts the global logger to io.Writer for stdlib loggers
type zerologWriter struct{}

func (zerologWriter) Write(p []byte) (n int, err error) {
	l := current()
	l.Warn().Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// StdErrorLogger returns a standard library *log.Logger that writes to
// zerolog, for http.Server.ErrorLog
func StdErrorLogger() *stdlog.Logger {
	return stdlog.New(zerologWriter{}, "", 0)
}

// ComponentLogger tags every event with a component name. It reads the
// global logger per call, so SetLevel and SetOutput apply to it.
type ComponentLogger struct {
	name string
}

// Component returns a logger tagged with a component name
func Component(name string) ComponentLogger {
	return ComponentLogger{name: name}
}

func (c ComponentLogger) Debug() *zerolog.Event {
	l := current()
	return l.Debug().Str("component", c.name)
}

func (c ComponentLogger) Info() *zerolog.Event {
	l := current()
	return l.Info().Str("component", c.name)
}

func (c ComponentLogger) Warn() *zerolog.Event {
	l := current()
	return l.Warn().Str("component", c.name)
}

func (c ComponentLogger) Error() *zerolog.Event {
	l := current()
	return l.Error().Str("component", c.name)
}
