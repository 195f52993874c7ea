package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New("warn", "console")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}

	logger, err = New("debug", "json")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("verbose", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSecretRedactsValue(t *testing.T) {
	if f := Secret("slack_bot_token", "xoxb-1"); f.String != "[REDACTED]" {
		t.Fatalf("token must be redacted, got %q", f.String)
	}
	if f := Secret("slack_bot_token", ""); f.String != "" {
		t.Fatalf("unset token should log empty, got %q", f.String)
	}
}
