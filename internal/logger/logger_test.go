package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fallwatch/internal/config"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()

	cfg := &config.Config{LogDirectory: filepath.Join(t.TempDir(), "logs")}
	l := NewLogger(cfg)
	t.Cleanup(func() { l.Close() })
	return l
}

func readLevelFile(t *testing.T, l *Logger, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(l.Dir(), name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestLogger_WritesEachLevelToItsFile(t *testing.T) {
	l := newTestLogger(t)

	l.Info("captured %s", "frame_a.jpg")
	l.Warning("camera slow: %d ms", 4200)
	l.Error("publish failed")

	if got := readLevelFile(t, l, InfoFile); !strings.Contains(got, "captured frame_a.jpg") {
		t.Errorf("info.log missing entry, got %q", got)
	}
	if got := readLevelFile(t, l, WarningFile); !strings.Contains(got, "camera slow: 4200 ms") {
		t.Errorf("warning.log missing entry, got %q", got)
	}
	if got := readLevelFile(t, l, ErrorFile); !strings.Contains(got, "publish failed") {
		t.Errorf("error.log missing entry, got %q", got)
	}
	if got := readLevelFile(t, l, InfoFile); strings.Contains(got, "publish failed") {
		t.Error("error entry leaked into info.log")
	}
}

func TestLogger_ShortfileNamesCaller(t *testing.T) {
	l := newTestLogger(t)

	l.Info("where am I")

	if got := readLevelFile(t, l, InfoFile); !strings.Contains(got, "logger_test.go") {
		t.Errorf("expected caller file in entry, got %q", got)
	}
}

func TestLogger_CleanLogs(t *testing.T) {
	l := newTestLogger(t)

	l.Error("first failure")
	if err := l.CleanLogs(ErrorFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}

	if got := readLevelFile(t, l, ErrorFile); got != "" {
		t.Errorf("error.log should be empty after clearing, got %q", got)
	}
}

func TestLogger_CleanLogsRejectsUnknownFile(t *testing.T) {
	l := newTestLogger(t)

	if err := l.CleanLogs("../../etc/passwd"); err == nil {
		t.Error("expected error for unknown log file")
	}
}
