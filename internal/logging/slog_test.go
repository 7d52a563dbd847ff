package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"ERROR", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.name)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSetLevelFollowsAccessConsole(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	SetLevelFromString("error")
	if defaultAccessLogger.console {
		t.Fatal("a quieter-than-info level must mute the access console mirror")
	}

	SetLevelFromString("debug")
	if !defaultAccessLogger.console {
		t.Fatal("a chatty level must restore the access console mirror")
	}

	// Unknown names leave both the level and the mirror untouched.
	SetLevelFromString("error")
	SetLevelFromString("nonsense")
	if defaultAccessLogger.console {
		t.Fatal("an unrecognized level name must be ignored")
	}
}
