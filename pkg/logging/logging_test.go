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
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatJSON, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("Expense added", "group_id", "g1")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "Expense added" || rec["group_id"] != "g1" {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["source"]; !ok {
		t.Error("expected source location in record")
	}
}

func TestNewHandler_TextWithoutColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "", slog.LevelInfo)).Info("Storage initialized", "driver", "sqlite")

	out := buf.String()
	if !strings.Contains(out, "Storage initialized") || !strings.Contains(out, "driver=sqlite") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no ANSI escapes when writing to a buffer, got %q", out)
	}
}
