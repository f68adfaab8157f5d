package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	prevOut, prevLogger := Output, log.Logger
	t.Cleanup(func() {
		Output = prevOut
		log.Logger = prevLogger
	})
	buf := &bytes.Buffer{}
	Output = buf
	return buf
}

func TestInitJSONInfoLevel(t *testing.T) {
	buf := captureOutput(t)
	Init()

	log.Debug().Msg("hidden")
	log.Info().Str("agent", "pm_agent").Msg("routed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["agent"] != "pm_agent" || entry["message"] != "routed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["caller"]; !ok {
		t.Fatal("caller field is missing")
	}
}

func TestInitDebugPretty(t *testing.T) {
	buf := captureOutput(t)
	Init(Config{Debug: true, PrettyFormat: true})

	log.Debug().Msg("attempt failed")

	if !strings.Contains(buf.String(), "attempt failed") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected console format, got %q", buf.String())
	}
}
