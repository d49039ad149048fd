// Package log provides structured logging for statesync.
// Entries carry a level, a category, a timestamp and key=value fields, and are
// written to a log file or stderr. Every entry is also published on a broker
// so tests and the debug tooling can observe the log stream.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/statesync/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Category groups related log messages.
type Category string

const (
	CatHTTP     Category = "http"     // Request handling and the server lifecycle
	CatResource Category = "resource" // Registry and record mutations
	CatConfig   Category = "config"   // Configuration loading/reloading
	CatTrace    Category = "trace"    // Tracing provider and exporters
	CatCache    Category = "cache"    // Snapshot cache operations
	CatWatcher  Category = "watcher"  // Config file watcher events
	CatClient   Category = "client"   // CLI client commands
)

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[string] // Pub/sub for log events
}

var (
	defaultLogger *Logger
	initMu        sync.Mutex
)

// Init initializes the global logger.
// An empty path logs to stderr. Returns a cleanup function that closes the
// log file, if one was opened.
func Init(path string, level Level) (func(), error) {
	initMu.Lock()
	defer initMu.Unlock()

	if path == "" {
		defaultLogger = newWriterLogger(os.Stderr, level)
		return func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is operator-controlled log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	l := newWriterLogger(f, level)
	l.file = f
	defaultLogger = l

	return func() {
		_ = f.Close()
	}, nil
}

// InitWriter points the global logger at w. Used by tests and embedding callers.
func InitWriter(w io.Writer, level Level) {
	initMu.Lock()
	defer initMu.Unlock()
	defaultLogger = newWriterLogger(w, level)
}

func newWriterLogger(w io.Writer, level Level) *Logger {
	return &Logger{
		writer:   w,
		enabled:  true,
		minLevel: level,
		broker:   pubsub.NewBroker[string](),
	}
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.enabled = enabled
		defaultLogger.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.minLevel = level
		defaultLogger.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := defaultLogger
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	// Format: 2025-12-06T10:45:00 [ERROR] [http] message key=value key2=value2
	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&sb, " [%s] [%s] %s", level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	// Odd field count: orphan key with no value
	if len(fields)%2 != 0 {
		fmt.Fprintf(&sb, " %v=<missing>", fields[len(fields)-1])
	}
	sb.WriteString("\n")
	entry := sb.String()

	if l.writer != nil {
		_, _ = io.WriteString(l.writer, entry)
	}

	// Non-blocking publish to subscribers
	if l.broker != nil {
		l.broker.Publish(pubsub.CreatedEvent, entry)
	}
}

// LogEvent is a pubsub event containing a log entry.
type LogEvent = pubsub.Event[string]

// Subscribe returns a channel of log entries, closed when ctx is cancelled.
// Returns nil if the logger has not been initialized.
func Subscribe(ctx context.Context) <-chan LogEvent {
	l := defaultLogger
	if l == nil || l.broker == nil {
		return nil
	}
	return l.broker.Subscribe(ctx)
}
