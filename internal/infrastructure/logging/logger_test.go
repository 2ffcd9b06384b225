package logging

import (
	"log/slog"
	"testing"

	"github.com/simrelay/simrelay/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("creates logger with json format", func(t *testing.T) {
		logger := New(config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"}, "test")
		if logger == nil || logger.Logger == nil {
			t.Fatal("New() returned nil logger")
		}
	})

	t.Run("creates logger with text format", func(t *testing.T) {
		logger := New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "test")
		if logger == nil || logger.Logger == nil {
			t.Fatal("New() returned nil logger")
		}
	})
}

func TestWith(t *testing.T) {
	base := Default()
	child := base.With("component", "test")

	if child == nil || child.Logger == nil {
		t.Fatal("With() returned nil logger")
	}
	if child == base {
		t.Error("With() should return a new logger")
	}
}
