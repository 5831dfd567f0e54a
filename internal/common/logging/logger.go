package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// NewDefaultLogger creates an INFO-level logger writing to stderr
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger installs a global logger at the given level. Output goes to the file at
// LOG_FILE when set, stderr otherwise.
func InitGlobalLogger(level string) error {
	var output io.Writer = os.Stderr
	if path := os.Getenv("LOG_FILE"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		output = file
	}

	logger, err := NewZapLogger(LogConfig{
		Level:  ParseLevel(level),
		Output: output,
		Name:   "amp-session",
	})
	if err != nil {
		return err
	}

	SetGlobalLogger(logger)
	return nil
}

// MustSync flushes any buffered log entries of the global logger
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Secret creates a field whose value is masked so credentials never reach the log in full
func Secret(key, value string) Field {
	return Field{Key: key, Value: Mask(value)}
}

// Mask keeps the first four characters of a secret
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + "..."
}
