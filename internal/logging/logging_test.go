package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: " WARN ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "chatty", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesJSONAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "themeswitch.log")
	logger, closer := New(Options{Level: "warn", File: file, Out: &buf})
	logger.Info("hidden")
	logger.Warn("theme applied", "theme", "ocean")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("stdout is not a single JSON record: %q", buf.String())
	}
	if rec["msg"] != "theme applied" || rec["theme"] != "ocean" {
		t.Fatalf("record = %v", rec)
	}
	b, err := os.ReadFile(file)
	if err != nil || !strings.Contains(string(b), `"theme":"ocean"`) {
		t.Fatalf("log file = %q, %v", b, err)
	}
}
