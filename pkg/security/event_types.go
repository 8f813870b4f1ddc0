// pkg/security/event_types.go
package security

import "log/slog"

// EventType names an authentication or access event
type EventType string

const (
	EventTypeLoginSuccess     EventType = "login_success"
	EventTypeLoginFailed      EventType = "login_failed"
	EventTypeRegistered       EventType = "registered"
	EventTypeTokenRejected    EventType = "token_rejected"
	EventTypeChannelConnected EventType = "channel_connected"
	EventTypeChannelRejected  EventType = "channel_rejected"
	EventTypeAccessDenied     EventType = "access_denied"
)

// Severity grades a security event
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level maps a severity onto a log level
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	case SeverityHigh, SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultSeverity is the severity an event type is logged with
func (t EventType) DefaultSeverity() Severity {
	switch t {
	case EventTypeLoginFailed, EventTypeTokenRejected, EventTypeChannelRejected, EventTypeAccessDenied:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
