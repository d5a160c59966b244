package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("warn"); err != nil {
		t.Errorf("Validate(warn): %v", err)
	}
	if err := Validate("loud"); err == nil {
		t.Errorf("Validate(loud): expected error")
	}
	if err := ValidateFormat("xml"); err == nil {
		t.Errorf("ValidateFormat(xml): expected error")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "channel", "dev")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["channel"] != "dev" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetupAndFor(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	if err := Setup(Options{Level: "info", Format: "text", Output: &buf}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	For("sweeper").Info("evicted", "user", "alice")

	out := buf.String()
	if !strings.Contains(out, "component=sweeper") || !strings.Contains(out, "user=alice") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSetupRejectsBadOptions(t *testing.T) {
	if err := Setup(Options{Level: "chatty"}); err == nil {
		t.Errorf("Setup: expected level error")
	}
	if err := Setup(Options{Format: "yaml"}); err == nil {
		t.Errorf("Setup: expected format error")
	}
}
