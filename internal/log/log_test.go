package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("session created", "session_id", "s1")

	out := buf.String()
	if !strings.Contains(out, "session created") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "session_id=s1") {
		t.Errorf("output missing attribute: %s", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo, JSON: true})

	logger.Info("session created", "session_id", "s1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "session created" {
		t.Errorf("msg = %v, want %q", record["msg"], "session created")
	}
	if record["session_id"] != "s1" {
		t.Errorf("session_id = %v, want %q", record["session_id"], "s1")
	}
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("below-threshold records leaked: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestNewNop_DiscardsEverything(t *testing.T) {
	logger := NewNop()

	// Must not panic or write anywhere visible.
	logger.Error("into the void", "key", "value")
}
