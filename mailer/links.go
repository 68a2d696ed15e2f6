// Package mailer delivers the verification and password reset emails.
package mailer

import (
	"net/url"
	"strings"
)

// Links builds the URLs placed in outgoing emails
type Links struct {
	BaseURL string
}

// Verification returns the link consumed by GET /users/verify
func (l Links) Verification(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/users/verify?token=" + url.QueryEscape(token)
}

// PasswordReset returns the link to the reset form
func (l Links) PasswordReset(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/users/password-reset/" + url.PathEscape(token)
}
