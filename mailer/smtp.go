package mailer

import (
	"bytes"
	"context"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/views"
	"gopkg.in/gomail.v2"
)

const (
	VerificationSubject  = "Verify your account"
	PasswordResetSubject = "Reset your password"
)

// Sender delivers a composed message. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Renderer renders a named template. The django engine implements it.
type Renderer interface {
	Render(out io.Writer, name string, binding any, layout ...string) error
}

// SMTPConfig holds what SMTPDispatcher needs to compose messages
type SMTPConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	From            string
	FrontendURL     string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// SMTPDispatcher renders the email templates and sends them over SMTP
type SMTPDispatcher struct {
	cfg      SMTPConfig
	links    Links
	sender   Sender
	renderer Renderer
}

var _ userauth.EmailDispatcher = (*SMTPDispatcher)(nil)

// NewSMTPDispatcher creates a dispatcher sending through a gomail dialer
func NewSMTPDispatcher(cfg SMTPConfig, renderer Renderer) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:      cfg,
		links:    Links{BaseURL: cfg.FrontendURL},
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		renderer: renderer,
	}
}

// WithSender replaces the SMTP dialer
func (d *SMTPDispatcher) WithSender(sender Sender) *SMTPDispatcher {
	if sender != nil {
		d.sender = sender
	}
	return d
}

func (d *SMTPDispatcher) SendVerificationEmail(ctx context.Context, email, token string) error {
	return d.send(ctx, email, VerificationSubject, views.VerifyEmail, map[string]any{
		"email":             email,
		"verification_link": d.links.Verification(token),
		"expires_in":        d.cfg.VerificationTTL.String(),
	})
}

func (d *SMTPDispatcher) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	return d.send(ctx, email, PasswordResetSubject, views.PasswordResetEmail, map[string]any{
		"email":      email,
		"reset_link": d.links.PasswordReset(token),
		"expires_in": d.cfg.ResetTTL.String(),
	})
}

func (d *SMTPDispatcher) send(ctx context.Context, to, subject, template string, bind map[string]any) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "email dispatch cancelled")
	}

	var body bytes.Buffer
	if err := d.renderer.Render(&body, template, bind); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": template})
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	if err := d.sender.DialAndSend(m); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send email").
			WithMetadata(map[string]any{"to": to, "subject": subject})
	}
	return nil
}
