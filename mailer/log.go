package mailer

import (
	"context"

	userauth "github.com/goliatone/go-userauth"
)

// LogDispatcher writes the links to the logger instead of sending
// mail. Use it in development when no SMTP host is configured.
type LogDispatcher struct {
	links  Links
	logger userauth.Logger
}

var _ userauth.EmailDispatcher = (*LogDispatcher)(nil)

func NewLogDispatcher(frontendURL string, logger userauth.Logger) *LogDispatcher {
	if logger == nil {
		logger = userauth.NopLogger()
	}
	return &LogDispatcher{links: Links{BaseURL: frontendURL}, logger: logger}
}

func (d *LogDispatcher) SendVerificationEmail(_ context.Context, email, token string) error {
	d.logger.Info("verification email", "to", email, "link", d.links.Verification(token))
	return nil
}

func (d *LogDispatcher) SendPasswordResetEmail(_ context.Context, email, token string) error {
	d.logger.Info("password reset email", "to", email, "link", d.links.PasswordReset(token))
	return nil
}
