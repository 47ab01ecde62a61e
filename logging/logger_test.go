package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// syncLogger calls Sync and ignores the "invalid argument" error Linux
// returns when syncing a terminal.
func syncLogger(t testing.TB, logger *Logger) {
	t.Helper()
	if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		t.Logf("Sync() warning: %v", err)
	}
}

func newBufferLogger(t *testing.T, dev bool) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(Options{
		Development: dev,
		Level:       zapcore.DebugLevel,
		Console:     zapcore.AddSync(&buf),
	})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return logger, &buf
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	logger, err := NewLogger(false, "")
	if err != nil {
		t.Fatalf("NewLogger() returned error: %v", err)
	}
	defer syncLogger(t, logger)

	if logger.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
	if logger.LogFilePath() != "" {
		t.Errorf("LogFilePath() = %q, want empty", logger.LogFilePath())
	}
}

func TestNewLogger_WritesRotatedFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "diffusion.log")

	logger, err := NewLogger(true, logPath)
	if err != nil {
		t.Fatalf("NewLogger() returned error: %v", err)
	}

	logger.Info("file entry", zap.String("model", "anime_realism"))
	syncLogger(t, logger)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log file line is not JSON: %v (%s)", err, data)
	}
	if entry[FieldMessage] != "file entry" {
		t.Errorf("message = %v, want %q", entry[FieldMessage], "file entry")
	}
	if entry["model"] != "anime_realism" {
		t.Errorf("model = %v, want anime_realism", entry["model"])
	}
}

func TestLogger_ProductionIsJSON(t *testing.T) {
	logger, buf := newBufferLogger(t, false)

	logger.Info("submitted", zap.String("token", "tok-1"))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("console output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldLevel] != "info" {
		t.Errorf("level = %v, want info", entry[FieldLevel])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	logger, buf := newBufferLogger(t, false)

	logger.Info("client created",
		zap.String("api_key", "dk-live-1234567890"),
		zap.String("detail", "Authorization: Bearer abcdefghijklmnop"),
	)

	out := buf.String()
	if strings.Contains(out, "dk-live-1234567890") {
		t.Errorf("api key leaked into output: %s", out)
	}
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Errorf("bearer token leaked into output: %s", out)
	}
	if !strings.Contains(out, RedactedPlaceholder) {
		t.Errorf("expected %s in output: %s", RedactedPlaceholder, out)
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	logger, buf := newBufferLogger(t, false)

	child := logger.Named("client").With(zap.String("job_id", "abc123"))
	child.Debug("polling")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry[FieldSource] != "client" {
		t.Errorf("source = %v, want client", entry[FieldSource])
	}
	if entry["job_id"] != "abc123" {
		t.Errorf("job_id = %v, want abc123", entry["job_id"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: zapcore.WarnLevel, Console: zapcore.AddSync(&buf)})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info entry written below warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn entry missing")
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() on nop logger returned %v", err)
	}
}

func TestNewFromZap(t *testing.T) {
	logger := NewFromZap(zaptest.NewLogger(t))
	logger.Info("through zaptest")

	if NewFromZap(nil) == nil {
		t.Error("NewFromZap(nil) returned nil")
	}
}
