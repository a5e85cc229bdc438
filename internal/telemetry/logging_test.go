package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Service: "actionflow-api", Output: &buf})

	logger.Info("dropped")
	WithNodeID(WithInstanceID(logger, "i1"), "i1.A").Warn("node stale")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"msg":         "node stale",
		"service":     "actionflow-api",
		"instance_id": "i1",
		"node_id":     "i1.A",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %q", key, entry[key], want)
		}
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LogConfig{Format: "TEXT", Output: &buf}).Info("hello", "blueprint_id", "bp")

	if got := buf.String(); !strings.Contains(got, "msg=hello blueprint_id=bp") {
		t.Errorf("unexpected text output: %q", got)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger for empty context")
	}

	logger := NewLogger(LogConfig{Output: &bytes.Buffer{}})
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
}
