// Package logger is a small leveled logger: DEBUG/INFO/WARN/ERROR, gated
// by a configurable minimum level, writing to stderr by default.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders the four severities this package understands.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel parses the case-insensitive debug|info|warn|error names
// config.Config.LogLevel accepts.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("logger: unknown level %q", s)
	}
}

// Logger writes leveled messages to a single io.Writer, gated by level.
type Logger struct {
	mu    sync.Mutex
	out   *log.Logger
	level Level
}

var (
	defaultLogger = &Logger{out: log.New(os.Stderr, "", 0), level: LevelInfo}
	once          sync.Once
)

// Init sets the process-wide minimum level and output writer. It is
// meant to be called once at startup, before any goroutine writes
// through the package-level functions; later calls are ignored.
func Init(level Level, out io.Writer) {
	once.Do(func() {
		if out == nil {
			out = os.Stderr
		}
		defaultLogger = &Logger{out: log.New(out, "", 0), level: level}
	})
}

func formatMessage(level Level, format string, args ...interface{}) string {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return fmt.Sprintf("%s [%s] %s", timestamp, level, fmt.Sprintf(format, args...))
}

func write(level Level, format string, args ...interface{}) {
	l := defaultLogger
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Println(formatMessage(level, format, args...))
}

// Debug logs at DEBUG level.
func Debug(format string, args ...interface{}) { write(LevelDebug, format, args...) }

// Info logs at INFO level.
func Info(format string, args ...interface{}) { write(LevelInfo, format, args...) }

// Warn logs at WARN level.
func Warn(format string, args ...interface{}) { write(LevelWarn, format, args...) }

// Error logs at ERROR level.
func Error(format string, args ...interface{}) { write(LevelError, format, args...) }

// Writer returns the underlying io.Writer, for handing to code (like
// net/http's server error log) that wants a plain writer rather than
// this package's leveled API.
func Writer() io.Writer {
	return defaultLogger.out.Writer()
}
