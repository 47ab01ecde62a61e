// Package logging provides structured logging for the diffusion.to client and CLI.
//
// Logger wraps zap.Logger and redacts credentials from every field before it
// reaches an encoder. Console output goes to stderr so that stdout stays free
// for the image reference printed by the CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger shared by the client, the image saver and
// the CLI.
//
// Example:
//
//	logger, err := NewLogger(true, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("image requested", zap.String("model", "beauty_realism"))
type Logger struct {
	zap *zap.Logger

	// isDevelopment indicates colored console output and debug level
	isDevelopment bool

	// logFilePath is the rotated log file, empty when logging to console only
	logFilePath string
}

// Options controls how New builds a Logger.
type Options struct {
	// Development switches the console encoder to colored, human-readable output.
	Development bool

	// Level is the minimum level written to every output.
	Level zapcore.Level

	// FilePath enables a rotated JSON log file when non-empty.
	FilePath string

	// File tunes rotation of FilePath. Zero fields fall back to defaults.
	File FileWriterConfig

	// Console overrides the console destination (stderr by default).
	Console zapcore.WriteSyncer
}

// NewLogger creates a Logger for the given environment.
//
// Development mode logs at debug level with a colored console encoder;
// production logs at info level as JSON. When logFilePath is non-empty the
// same entries are also written, as JSON, to a lumberjack-rotated file.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}
	return New(Options{
		Development: isDevelopment,
		Level:       level,
		FilePath:    logFilePath,
		File:        DefaultFileWriterConfig(),
	})
}

// New creates a Logger from explicit options.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = zapcore.Lock(zapcore.AddSync(stderrWriter{}))
	}

	var fileWriter zapcore.WriteSyncer
	if opts.FilePath != "" {
		w, err := NewFileWriterWithConfig(opts.FilePath, opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file writer: %w", err)
		}
		fileWriter = w
	}

	core := NewMultiCoreWithWriters(opts.Level, console, fileWriter, opts.Development)

	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1), // Skip this wrapper layer
	)

	return &Logger{
		zap:           zapLogger,
		isDevelopment: opts.Development,
		logFilePath:   opts.FilePath,
	}, nil
}

// NewNop returns a Logger that discards everything. Library callers that do
// not pass a logger get one of these.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// NewFromZap wraps an existing zap.Logger, e.g. one from zaptest.
func NewFromZap(z *zap.Logger) *Logger {
	if z == nil {
		return NewNop()
	}
	return &Logger{zap: z.WithOptions(zap.AddCallerSkip(1))}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// With creates a child logger whose entries all carry fields.
//
// Example:
//
//	jobLogger := logger.With(zap.String("job_id", id))
//	jobLogger.Info("polling")
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:           l.zap.With(redactFields(fields)...),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Named adds a sub-logger name that shows up in the "source" field.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		zap:           l.zap.Named(name),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// IsDevelopment returns true if the logger is configured for development mode.
func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the path to the log file, or "" for console-only loggers.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}

// redactFields filters sensitive data from zap.Field values.
func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zap.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

// redactField redacts a single zap.Field if its key or string value is sensitive.
func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}

	if field.Type == zapcore.StringType {
		redacted := RedactSensitiveData(field.String)
		if redacted != field.String {
			return zap.String(field.Key, redacted)
		}
	}

	return field
}
