package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "a****@*******.com"},
		{"a@example.co.uk", "a@*******.**.uk"},
		{"bob@localhost", "b**@localhost"},
		{"not-an-email", "[invalid-email]"},
		{"a@b@c.com", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizedEmail(tt.in))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("refresh_token=abc"))
	assert.True(t, SanitizeQueryString("Email=alice%40example.com"))
	assert.True(t, SanitizeQueryString("page=1&api_key=x"))
	assert.False(t, SanitizeQueryString("page=1&limit=20"))
	assert.False(t, SanitizeQueryString(""))
}
