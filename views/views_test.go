package views_test

import (
	"bytes"
	"testing"

	"github.com/goliatone/go-userauth/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRendersEmbeddedTemplates(t *testing.T) {
	engine := views.NewEngine()
	require.NoError(t, engine.Load())

	tests := []struct {
		name     string
		template string
		bind     map[string]any
		contains []string
	}{
		{
			name:     "reset form",
			template: views.PasswordResetForm,
			bind:     map[string]any{"token": "tok-123", "csrf_token": "csrf-abc"},
			contains: []string{`action="/users/password-reset/tok-123"`, `name="confirm_password"`, `name="_token" value="csrf-abc"`},
		},
		{
			name:     "reset result",
			template: views.PasswordResetResult,
			bind:     map[string]any{"title": "Password updated", "message": "You can sign in now", "success": true, "login_url": "/login"},
			contains: []string{"Password updated", `href="/login"`},
		},
		{
			name:     "verification email",
			template: views.VerifyEmail,
			bind:     map[string]any{"email": "bob@x.com", "verification_link": "http://localhost/users/verify?token=abc", "expires_in": "15m0s"},
			contains: []string{"bob@x.com", "users/verify?token=abc", "15m0s"},
		},
		{
			name:     "reset email",
			template: views.PasswordResetEmail,
			bind:     map[string]any{"email": "alice@x.com", "reset_link": "http://localhost/users/password-reset/xyz"},
			contains: []string{"alice@x.com", "users/password-reset/xyz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, engine.Render(&buf, tt.template, tt.bind))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestEngineEscapesInput(t *testing.T) {
	engine := views.NewEngine()
	require.NoError(t, engine.Load())

	var buf bytes.Buffer
	require.NoError(t, engine.Render(&buf, views.PasswordResetResult, map[string]any{
		"title":   "Oops",
		"message": "<script>alert(1)</script>",
	}))
	assert.NotContains(t, buf.String(), "<script>")
}
