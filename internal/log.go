package internal

import (
	"log"
	"os"
)

// LogLevel orders verbosity from quietest to noisiest.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel maps a LOG_LEVEL value to a level. Empty or unknown values
// fall back to INFO.
func ParseLogLevel(value string) LogLevel {
	switch value {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Logger is the engine's leveled logger. The statistical procedures stay
// silent; only the enrichment and aggregation boundaries log, so a batch run
// over thousands of endpoints remains readable at INFO.
type Logger struct {
	level LogLevel
}

// NewLogger creates a logger at a fixed level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// NewDefaultLogger reads the level from the LOG_LEVEL environment variable.
func NewDefaultLogger() *Logger {
	return &Logger{level: ParseLogLevel(os.Getenv("LOG_LEVEL"))}
}

// Error logs failures that abort a batch.
func (l *Logger) Error(format string, args ...interface{}) {
	l.printf(LogLevelError, "[ERROR] ", format, args...)
}

// Warn logs isolated per-endpoint failures.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.printf(LogLevelWarn, "[WARN] ", format, args...)
}

// Info logs batch summaries and derivation milestones.
func (l *Logger) Info(format string, args ...interface{}) {
	l.printf(LogLevelInfo, "[INFO] ", format, args...)
}

// Debug logs per-endpoint classification outcomes.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.printf(LogLevelDebug, "[DEBUG] ", format, args...)
}

func (l *Logger) printf(level LogLevel, prefix, format string, args ...interface{}) {
	if l.level >= level {
		log.Printf(prefix+format, args...)
	}
}

// DefaultLogger serves callers that do not inject their own.
var DefaultLogger = NewDefaultLogger()
