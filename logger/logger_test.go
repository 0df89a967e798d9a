package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fastplayer.log")
	lv := new(slog.LevelVar)

	l, err := New(Config{Level: "warn", Format: "json", Outputs: []string{path}}, lv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Info("hidden")
	l.Warn("shown", "id", "a")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["msg"] != "shown" || entry["id"] != "a" {
		t.Fatalf("entry = %v", entry)
	}

	lv.Set(slog.LevelDebug)
	l.Debug("now visible")
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "now visible") {
		t.Fatal("level change was not applied")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}, new(slog.LevelVar)); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONIndentsPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	lv := new(slog.LevelVar)
	l, err := New(Config{Level: "debug", Outputs: []string{path}}, lv)
	if err != nil {
		t.Fatal(err)
	}

	JSON(l, "payload", []byte(`{"type":"play","id":"a"}`))
	JSON(l, "broken", []byte(`{not json`))

	data, _ := os.ReadFile(path)
	out := string(data)
	if !strings.Contains(out, `\"type\": \"play\"`) {
		t.Fatalf("indented json missing: %s", out)
	}
	if !strings.Contains(out, `raw="{not json"`) {
		t.Fatalf("raw payload missing: %s", out)
	}
}
