package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func withTestLogger(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved := defaultLogger
	defaultLogger = &Logger{out: log.New(&buf, "", 0), level: level}
	t.Cleanup(func() { defaultLogger = saved })
	return &buf
}

func TestWriteRespectsLevelGate(t *testing.T) {
	buf := withTestLogger(t, LevelWarn)
	Info("should be suppressed")
	Error("should appear: %d", 42)

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("INFO message leaked through a WARN gate: %q", out)
	}
	if !strings.Contains(out, "should appear: 42") {
		t.Errorf("ERROR message missing: %q", out)
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Errorf("missing level tag: %q", out)
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("want error for unknown level name")
	}
	lvl, err := ParseLevel("WARN")
	if err != nil || lvl != LevelWarn {
		t.Errorf("ParseLevel(WARN) = %v, %v", lvl, err)
	}
}
