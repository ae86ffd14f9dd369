// Package log provides structured logging with session context.
//
// Every session owns one Logger; all entries carry the session identity
// so interleaved output from concurrent sessions stays attributable.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with session context.
type Logger struct {
	zap       *zap.Logger
	sessionID string
	repo      string
}

// NewLogger creates a new logger bound to a session identity.
// Output defaults to os.Stderr. An empty repo is omitted from the
// context fields; sessions opened without a repository have none.
func NewLogger(sessionID, repo string) *Logger {
	return newLoggerWithWriter(sessionID, repo, os.Stderr)
}

// WithOutput returns a new logger with a different output writer.
// The session context fields carry over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(l.sessionID, l.repo, w)
}

// newLoggerWithWriter creates a logger writing to the specified writer.
func newLoggerWithWriter(sessionID, repo string, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)

	contextFields := []zap.Field{
		zap.String("session_id", sessionID),
	}
	if repo != "" {
		contextFields = append(contextFields, zap.String("repo", repo))
	}

	return &Logger{
		zap:       zap.New(core).With(contextFields...),
		sessionID: sessionID,
		repo:      repo,
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}
