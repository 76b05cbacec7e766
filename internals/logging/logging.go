package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"

	"github.com/zazzle-agent/taskwatch/internals/assert"
)

// New builds the process logger: tint to the supplied writer, debug level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level: level,
	})
	return slog.New(handler)
}

// NewWithFile mirrors New but also appends to a log file under dataDir so
// stubd runs keep a record across restarts.
func NewWithFile(dataDir string, level slog.Level) (*slog.Logger, *os.File) {
	logPath := filepath.Join(dataDir, "log.txt")
	err := os.MkdirAll(filepath.Dir(logPath), 0o755)
	assert.AssertNil(err, "[LOGGING] Failed to initialize log directory")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	assert.AssertNil(err, "[LOGGING] Failed to open log file")
	logWriter := io.MultiWriter(os.Stderr, logFile)
	handler := tint.NewHandler(logWriter, &tint.Options{
		Level:     level,
		AddSource: true,
	})
	logger := slog.New(handler)

	slog.SetDefault(logger)
	return logger, logFile
}
