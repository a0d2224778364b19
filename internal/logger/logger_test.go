package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewEmitsServiceField(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("ordersend", "production", "info", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info().Msg("started")

	line := buf.String()
	if !strings.Contains(line, `"service":"ordersend"`) {
		t.Errorf("output missing service field: %s", line)
	}
	if !strings.Contains(line, `"message":"started"`) {
		t.Errorf("output missing message: %s", line)
	}
}

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("ordersend", "production", "warn", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("ordersend", "production", "", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %s, want info", log.GetLevel())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("ordersend", "production", "shouty"); err == nil {
		t.Errorf("New with bad level: err = nil, want error")
	}
}

func TestComponentTagsChildLogger(t *testing.T) {
	var buf bytes.Buffer
	base, err := New("ordersend", "production", "info", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	child := Component(base, "dispatcher")
	child.Info().Msg("routed")

	if !strings.Contains(buf.String(), `"component":"dispatcher"`) {
		t.Errorf("output missing component field: %s", buf.String())
	}
}
