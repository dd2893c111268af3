package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "a****@*******.com"},
		{"b@example.com", "b@*******.com"},
		{"carol@mail.example.co.uk", "c****@***************.uk"},
		{"no-at-sign", "[invalid-email]"},
		{"@example.com", "[invalid-email]"},
		{"alice@", "[invalid-email]"},
		{"", "[invalid-email]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskEmail(tt.email), "email %q", tt.email)
	}
}

func TestSanitizeQueryString(t *testing.T) {
	redacted := []string{
		"password=hunter2",
		"reset_code=A1B2C3",
		"TOKEN=abc",
		"email=alice%40example.com",
		"totp=123456",
	}
	for _, q := range redacted {
		assert.True(t, SanitizeQueryString(q), "query %q should be redacted", q)
	}

	kept := []string{
		"",
		"page=2&limit=50",
		"sort=created_at",
	}
	for _, q := range kept {
		assert.False(t, SanitizeQueryString(q), "query %q should be kept", q)
	}
}
