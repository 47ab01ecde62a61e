package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default file writer configuration values
const (
	// DefaultMaxSizeMB is the maximum size in megabytes before rotation
	DefaultMaxSizeMB = 20

	// DefaultMaxBackups is the number of old log files to retain
	DefaultMaxBackups = 3

	// DefaultMaxAgeDays is the maximum number of days to retain old log files
	DefaultMaxAgeDays = 14
)

// FileWriterConfig holds rotation settings for the log file.
// Zero values for the numeric fields fall back to the defaults above.
type FileWriterConfig struct {
	// MaxSizeMB is the maximum size in megabytes of the log file before rotation.
	MaxSizeMB int

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int

	// MaxAgeDays is the maximum number of days to retain old log files.
	MaxAgeDays int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultFileWriterConfig returns a FileWriterConfig with default values.
// A CLI run writes little, so the defaults are small and compression is on.
func DefaultFileWriterConfig() FileWriterConfig {
	return FileWriterConfig{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
}

// NewFileWriterWithConfig creates a zapcore.WriteSyncer backed by a
// lumberjack.Logger. The parent directory of path is created if missing so
// that a bad path surfaces at startup rather than on the first write.
func NewFileWriterWithConfig(path string, config FileWriterConfig) (zapcore.WriteSyncer, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is required")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	cfg := applyFileWriterDefaults(config)

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}), nil
}

// applyFileWriterDefaults fills in zero values with defaults.
func applyFileWriterDefaults(config FileWriterConfig) FileWriterConfig {
	result := config

	if result.MaxSizeMB <= 0 {
		result.MaxSizeMB = DefaultMaxSizeMB
	}
	if result.MaxBackups <= 0 {
		result.MaxBackups = DefaultMaxBackups
	}
	if result.MaxAgeDays <= 0 {
		result.MaxAgeDays = DefaultMaxAgeDays
	}

	return result
}
