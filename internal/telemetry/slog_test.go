package telemetry

import (
	"log/slog"
	"testing"
)

func TestSetupLogger_LevelParsing(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		SetupLogger("text", tt.level)
		if !slog.Default().Enabled(nil, tt.want) {
			t.Errorf("level %q: expected %v to be enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && slog.Default().Enabled(nil, tt.want-4) {
			t.Errorf("level %q: expected %v to be disabled", tt.level, tt.want-4)
		}
	}
}

func TestSetupLogger_JSONFormat(t *testing.T) {
	// Must not panic and must install a default logger.
	SetupLogger("json", "info")
	if slog.Default() == nil {
		t.Fatal("no default logger installed")
	}
}
