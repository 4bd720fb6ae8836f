package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerSingleWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Info().Str("stage", "gain").Msg("done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["stage"] != "gain" {
		t.Errorf("expected stage=gain, got %v", entry["stage"])
	}
	if entry["message"] != "done" {
		t.Errorf("expected message=done, got %v", entry["message"])
	}
}

func TestNewLoggerMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b)
	logger.Warn().Msg("twice")

	if a.Len() == 0 || b.Len() == 0 {
		t.Errorf("expected both writers to receive output, got %d and %d bytes", a.Len(), b.Len())
	}
}
