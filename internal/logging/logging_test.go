package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSetup_EmitsContractFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := For(Setup(&buf, slog.LevelInfo), "discovery")

	logger.Info("tool discovery complete",
		Metadata(map[string]any{"upstream_id": "playwright", "tool_count": 12}))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not one JSON object: %v (%q)", err, buf.String())
	}

	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["component"] != "discovery" {
		t.Errorf("component = %v, want discovery", entry["component"])
	}
	if entry["message"] != "tool discovery complete" {
		t.Errorf("message = %v", entry["message"])
	}

	ts, ok := entry["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp missing: %v", entry)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t.Fatalf("timestamp %q is not ISO-8601: %v", ts, err)
	}
	if parsed.Location() != time.UTC {
		t.Errorf("timestamp %q is not UTC", ts)
	}

	metadata, ok := entry["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata missing: %v", entry)
	}
	if metadata["upstream_id"] != "playwright" {
		t.Errorf("metadata.upstream_id = %v", metadata["upstream_id"])
	}
	if metadata["tool_count"] != float64(12) {
		t.Errorf("metadata.tool_count = %v", metadata["tool_count"])
	}
}

func TestSetup_LevelNames(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelInfo)

	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	want := []string{"info", "warn", "error"}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d not JSON: %v", i, err)
		}
		if entry["level"] != want[i] {
			t.Errorf("line %d level = %v, want %s", i, entry["level"], want[i])
		}
	}
}

func TestSetup_OneObjectPerLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelInfo)
	logger.Info("first")
	logger.Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %q is not a standalone JSON object: %v", line, err)
		}
	}
}
