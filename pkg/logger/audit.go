package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventLoginSuccess       = "login_success"
	EventLoginFailed        = "login_failed"
	EventTokenRefreshed     = "token_refreshed"
	EventRefreshDenied      = "refresh_denied"
	EventIdentityRegistered = "identity_registered"
	EventRegistrationFailed = "registration_failed"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	IdentityID    string
	Subject       string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	env    string
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger. Outside development, subjects
// are masked with SanitizedEmail.
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
		now:    time.Now,
	}
}

// LogAuthAttempt logs a login attempt
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	al.log(ctx, "auth", event)
}

// LogTokenEvent logs a refresh outcome
func (al *AuditLogger) LogTokenEvent(ctx context.Context, event AuditEvent) {
	al.log(ctx, "token", event)
}

// LogAccountAction logs general account actions
func (al *AuditLogger) LogAccountAction(ctx context.Context, event AuditEvent) {
	al.log(ctx, "account", event)
}

func (al *AuditLogger) log(ctx context.Context, auditType string, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.IdentityID != "" {
		attrs = append(attrs, slog.String("identity_id", event.IdentityID))
	}
	if event.Subject != "" {
		attrs = append(attrs, al.subjectAttr(event.Subject))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

func (al *AuditLogger) subjectAttr(subject string) slog.Attr {
	if al.env == "development" {
		return slog.String("subject", subject)
	}
	return slog.String("subject", SanitizedEmail(subject))
}
