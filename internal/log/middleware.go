package log

import (
	"context"
	"log/slog"
	"net/http"

	"finanzas/internal/core"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// healthPaths are polled by the orchestrator and only logged
// at debug level.
var healthPaths = map[string]bool{"/healthz": true, "/readyz": true}

// StructuredLogger writes the request start/end pair for the ledger API.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) baseLevel(r *http.Request) slog.Level {
	if healthPaths[r.URL.Path] {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// LogHTTPStart logs an incoming request together with the caller identity
// headers the handlers turn into an actor.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)
	if uid := r.Header.Get("X-User-ID"); uid != "" {
		fields = fields.WithActor(core.UserActor(uid, ""))
	}

	sl.logger.Fields(ctx, sl.baseLevel(r), "HTTP request started", fields)
}

// LogHTTPEnd logs the outcome. Client errors are warnings and server errors
// are errors, health checks included.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := sl.baseLevel(r)
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.Fields(ctx, level, "HTTP request completed", fields)
}
