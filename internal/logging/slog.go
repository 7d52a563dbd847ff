// Package logging provides the process-wide structured logger and the
// HTTP access log.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	opLogger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// Op returns the operational logger for daemon/infrastructure logs.
func Op() *slog.Logger {
	return opLogger.Load()
}

// ParseLevel maps a textual level name to its slog.Level. ok is false
// for names it does not recognize.
func ParseLevel(name string) (level slog.Level, ok bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel changes the log level of the operational logger. The access
// log's console mirror follows: per-request lines are info-level
// chatter, so a quieter-than-info process also silences the mirror.
// The JSON access log file, once configured, is unaffected.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
	defaultAccessLogger.SetConsole(level <= slog.LevelInfo)
}

// SetLevelFromString sets the log level from its textual name.
// Unknown names are ignored.
func SetLevelFromString(name string) {
	if level, ok := ParseLevel(name); ok {
		SetLevel(level)
	}
}
