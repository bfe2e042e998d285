package logging_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/torosent/crankfeed/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{" WARN ", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := logging.New("warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Errorf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Errorf("warn should be enabled")
	}

	debug, err := logging.New("debug")
	if err != nil {
		t.Fatalf("New(debug): %v", err)
	}
	if !debug.Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("debug should be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := logging.New("chatty"); err == nil {
		t.Fatal("expected error")
	}
}
