package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// stderrWriter forwards to os.Stderr at write time so tests that swap
// os.Stderr still capture console output.
type stderrWriter struct{}

func (stderrWriter) Write(p []byte) (int, error) {
	return os.Stderr.Write(p)
}

// NewMultiCoreWithWriters creates a zapcore.Core that writes to the console
// and, when fileWriter is non-nil, tees the same entries to a file.
//
// The file output always uses JSON. The console output uses:
//   - Development mode (isDev=true): colored, human-readable format
//   - Production mode (isDev=false): JSON
//
// Example:
//
//	var buf bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel, zapcore.AddSync(os.Stderr), zapcore.AddSync(&buf), true)
//	logger := zap.New(core)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)
	if fileWriter == nil {
		return consoleCore
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)

	return zapcore.NewTee(consoleCore, fileCore)
}
