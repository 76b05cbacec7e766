package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)
	logger.Info("warming up", "attempt", 1)

	if !strings.Contains(buf.String(), "warming up") {
		t.Fatalf("log output missing message: %q", buf.String())
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)
	logger.Info("should be filtered")

	if buf.Len() != 0 {
		t.Fatalf("expected info below warn level to be dropped, got %q", buf.String())
	}
}

func TestNewWithFileAppendsToLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, logFile := NewWithFile(dir, slog.LevelInfo)
	logger.Info("run started")
	if err := logFile.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "run started") {
		t.Fatalf("log file missing entry: %q", string(data))
	}

	// A second run appends instead of truncating.
	logger, logFile = NewWithFile(dir, slog.LevelInfo)
	logger.Info("run resumed")
	if err := logFile.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}
	data, err = os.ReadFile(filepath.Join(dir, "log.txt"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "run started") || !strings.Contains(string(data), "run resumed") {
		t.Fatalf("expected both runs in log file: %q", string(data))
	}
}
