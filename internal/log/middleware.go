package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogCommand logs the outcome of one bot command. Rejected commands are
// logged at warn level since they are user errors, not failures.
func (sl *StructuredLogger) LogCommand(ctx context.Context, userID int64, command string, err error) {
	fields := NewFields().
		WithUser(userID).
		WithCommand(command, err == nil).
		WithError(err).
		WithComponent(ComponentBot)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "Command handled", fields.ToSlice()...)
}

// LogEntryAdded logs a successful entry creation
func (sl *StructuredLogger) LogEntryAdded(ctx context.Context, userID int64, moneyType, category, amount, date string, position int) {
	fields := NewFields().
		WithUser(userID).
		WithEntry(moneyType, category, amount, date).
		WithOperation(OpAdd).
		WithComponent(ComponentLedger).
		ToSlice()

	fields = append(fields, FieldPosition, position)

	sl.logger.Logger.InfoContext(ctx, "Entry added", fields...)
}
