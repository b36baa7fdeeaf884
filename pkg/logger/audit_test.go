package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturingAuditLogger(env string) (*AuditLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)), env), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLogger_FailedLoginIsWarnAndMasked(t *testing.T) {
	al, buf := newCapturingAuditLogger("production")

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     EventLoginFailed,
		Subject:       "alice@example.com",
		IPAddress:     "1.2.3.4",
		FailureReason: "wrong_password",
	})

	entry := decodeLine(t, buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "auth", entry["audit_type"])
	assert.Equal(t, EventLoginFailed, entry["event_type"])
	assert.Equal(t, "a****@*******.com", entry["subject"])
	assert.Equal(t, "wrong_password", entry["failure_reason"])
}

func TestAuditLogger_DevelopmentKeepsSubject(t *testing.T) {
	al, buf := newCapturingAuditLogger("development")

	al.LogAccountAction(context.Background(), AuditEvent{
		EventType:  EventIdentityRegistered,
		IdentityID: "id-1",
		Subject:    "alice@example.com",
		Success:    true,
	})

	entry := decodeLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "account", entry["audit_type"])
	assert.Equal(t, "alice@example.com", entry["subject"])
	assert.Equal(t, "id-1", entry["identity_id"])
}

func TestAuditLogger_NilIsNoop(t *testing.T) {
	var al *AuditLogger
	assert.NotPanics(t, func() {
		al.LogTokenEvent(context.Background(), AuditEvent{EventType: EventTokenRefreshed})
	})
}
