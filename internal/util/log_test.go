package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFactory_WritesScopeAndMessage(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerFactory(&buf, false).NewLogger("signal")

	log.Infof("connected to %s", "ws://example")

	out := buf.String()
	if !strings.Contains(out, "connected to ws://example") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "signal") {
		t.Errorf("expected scope in output, got %q", out)
	}
}

func TestLoggerFactory_DebugHiddenByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerFactory(&buf, false).NewLogger("webrtc")

	log.Debug("noisy detail")

	if strings.Contains(buf.String(), "noisy detail") {
		t.Errorf("debug message should be filtered, got %q", buf.String())
	}
}

func TestLoggerFactory_DebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerFactory(&buf, true).NewLogger("webrtc")

	log.Debugf("candidate %d", 3)

	if !strings.Contains(buf.String(), "candidate 3") {
		t.Errorf("expected debug message, got %q", buf.String())
	}
}

func TestScoped_NilFactory(t *testing.T) {
	if Scoped(nil, "x") == nil {
		t.Fatal("expected a logger from the default factory")
	}
}
