package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "production", "api")

	l.Debug().Msg("hidden")
	l.Info().Str("job_id", "abc").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "hello" || line["job_id"] != "abc" || line["service"] != "api" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNew_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "development", "worker")

	l.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
