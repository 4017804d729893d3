// Package app assembles the engine's components for one model and provides
// shared application services such as logging.
package app

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel. Unknown strings parse as
// LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return LogLevelDebug
	case "info", "INFO":
		return LogLevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LogLevelWarn
	case "error", "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging for the engine. A nil *Logger is valid
// and discards everything, so components can hold one without nil checks.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     LogLevel
	component string
}

// NewLogger creates a logger writing to out at the given minimum level.
func NewLogger(out io.Writer, level LogLevel) *Logger {
	return &Logger{out: out, level: level}
}

// WithComponent returns a logger that prefixes messages with the component
// name. The child shares the parent's writer and level.
func (l *Logger) WithComponent(name string) *Logger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{out: l.out, level: l.level, component: name}
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LogLevelDebug, format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(LogLevelInfo, format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LogLevelWarn, format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LogLevelError, format, args...)
}

func (l *Logger) logf(level LogLevel, format string, args ...any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level || l.out == nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	if l.component != "" {
		fmt.Fprintf(l.out, "[%s] %-5s %s: %s\n", ts, level, l.component, msg)
	} else {
		fmt.Fprintf(l.out, "[%s] %-5s %s\n", ts, level, msg)
	}
}
