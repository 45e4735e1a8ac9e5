// Package logger wraps log/slog with the handful of structured event
// helpers the CRM emits everywhere.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger embeds slog.Logger so callers get Info/Warn/Error/Debug directly.
type Logger struct {
	*slog.Logger
}

// New picks the handler from the environment name: readable text and debug
// level in development, JSON at info level everywhere else.
func New(env string) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// HTTPRequest logs one served request, used by the access-log middleware.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// AuthEvent logs sign-in and token outcomes. Failures carry a reason and log
// at warn so auth abuse stands out in aggregation.
func (l *Logger) AuthEvent(event, email string, success bool, reason string) {
	if success {
		l.Info("auth_event",
			slog.String("event", event),
			slog.String("email", email),
			slog.Bool("success", true),
		)
		return
	}
	l.Warn("auth_event",
		slog.String("event", event),
		slog.String("email", email),
		slog.Bool("success", false),
		slog.String("reason", reason),
	)
}

// RateLimitExceeded logs a rejected request from the IP rate limiter.
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
