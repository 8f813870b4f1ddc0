// internal/service/security_logger.go
package service

import (
	"context"
	"log/slog"

	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/pkg/security"
)

// SecurityLogger writes authentication and access events to the structured log
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityLogger{logger: logger.With("component", "security")}
}

// LogFromContext logs a security event enriched with the caller's client information
func (sl *SecurityLogger) LogFromContext(ctx context.Context, eventType security.EventType, description string, attrs ...any) {
	if sl == nil {
		return
	}
	clientInfo := middleware.GetClientInfoFromContext(ctx)
	severity := eventType.DefaultSeverity()

	attrs = append(attrs,
		"event_type", eventType,
		"severity", severity,
		"ip", clientInfo.IPAddress,
		"user_agent", clientInfo.UserAgent,
	)
	if clientInfo.RequestID != "" {
		attrs = append(attrs, "request_id", clientInfo.RequestID)
	}
	sl.logger.Log(ctx, severity.Level(), description, attrs...)
}

// Convenience methods for common security events

func (sl *SecurityLogger) LogLoginSuccess(ctx context.Context, username string) {
	sl.LogFromContext(ctx, security.EventTypeLoginSuccess, "user logged in", "username", username)
}

func (sl *SecurityLogger) LogLoginFailed(ctx context.Context, username, reason string) {
	sl.LogFromContext(ctx, security.EventTypeLoginFailed, "login failed", "username", username, "reason", reason)
}

func (sl *SecurityLogger) LogRegistered(ctx context.Context, username string) {
	sl.LogFromContext(ctx, security.EventTypeRegistered, "user registered", "username", username)
}

func (sl *SecurityLogger) LogTokenRejected(ctx context.Context, reason string) {
	sl.LogFromContext(ctx, security.EventTypeTokenRejected, "token rejected", "reason", reason)
}

func (sl *SecurityLogger) LogChannelConnected(ctx context.Context, username, sessionID string) {
	sl.LogFromContext(ctx, security.EventTypeChannelConnected, "channel session established",
		"username", username, "session_id", sessionID)
}

func (sl *SecurityLogger) LogChannelRejected(ctx context.Context, sessionID, reason string) {
	sl.LogFromContext(ctx, security.EventTypeChannelRejected, "channel connect rejected",
		"session_id", sessionID, "reason", reason)
}

func (sl *SecurityLogger) LogAccessDenied(ctx context.Context, username, action string) {
	sl.LogFromContext(ctx, security.EventTypeAccessDenied, "access denied", "username", username, "action", action)
}
