package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"dev", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"prod", slog.LevelError, true},
		{"", 0, false},
		{"verbose", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseLevel(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("parseLevel(%q) = %v, %v", tc.in, got, ok)
		}
	}
}

func TestInitUsesDefaultLevel(t *testing.T) {
	t.Setenv("OPENDROP_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "")

	Init(slog.LevelWarn)

	h := slog.Default().Handler()
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at the warn default")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at the warn default")
	}
}

func TestInitEnvOverridesDefault(t *testing.T) {
	t.Setenv("OPENDROP_LOG_LEVEL", "debug")

	Init(slog.LevelError)

	if !slog.Default().Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("OPENDROP_LOG_LEVEL=debug should enable debug logging")
	}
}

func TestInitFallbackVariable(t *testing.T) {
	t.Setenv("OPENDROP_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "info")

	Init(slog.LevelError)

	h := slog.Default().Handler()
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("LOG_LEVEL=info should enable info logging")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("LOG_LEVEL=info should not enable debug logging")
	}
}
