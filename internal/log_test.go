package internal

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		value    string
		expected LogLevel
	}{
		{"ERROR", LogLevelError},
		{"WARN", LogLevelWarn},
		{"INFO", LogLevelInfo},
		{"DEBUG", LogLevelDebug},
		{"", LogLevelInfo},
		{"bogus", LogLevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLogLevel(tc.value); got != tc.expected {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.value, got, tc.expected)
		}
	}
}

func TestLoggerSuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	logger := NewLogger(LogLevelWarn)
	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("levels above WARN should be suppressed, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line") || !strings.Contains(out, "[ERROR] error line") {
		t.Errorf("WARN and ERROR should pass, got %q", out)
	}
}
