package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AccessEntry is a single served HTTP request.
type AccessEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	SpanID     string    `json:"span_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	BytesOut   int64     `json:"bytes_out"`
	RemoteIP   string    `json:"remote_ip,omitempty"`
}

// AccessLogger writes access entries as JSON lines to an optional file,
// with an optional human-readable console mirror.
type AccessLogger struct {
	mu      sync.Mutex
	file    *os.File
	console bool
}

var defaultAccessLogger = &AccessLogger{console: true}

// Access returns the default access logger.
func Access() *AccessLogger {
	return defaultAccessLogger
}

// SetOutput directs JSON entries to the given file path, appending.
func (l *AccessLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables or disables the console mirror.
func (l *AccessLogger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes one entry.
func (l *AccessLogger) Log(entry *AccessEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = time.Now()

	if l.console {
		fmt.Printf("[http] %d %s %s %dms %s\n",
			entry.Status, entry.Method, entry.Path, entry.DurationMs, entry.RequestID)
	}

	if l.file != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.file.Write(append(data, '\n'))
		}
	}
}

// Close closes the underlying log file if one was opened.
func (l *AccessLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
