package userauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
)

// MinOpaqueTokenBytes is the floor for GenerateOpaqueToken
const MinOpaqueTokenBytes = 16

// GenerateOpaqueToken returns n random bytes, URL-safe base64 encoded
// without padding. n below MinOpaqueTokenBytes is raised to it.
func GenerateOpaqueToken(n int) (string, error) {
	if n < MinOpaqueTokenBytes {
		n = MinOpaqueTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func dispatch(ctx context.Context, logger Logger, kind, email string, send func(context.Context) error) {
	if err := send(ctx); err != nil {
		logger.Error("email dispatch failed", "kind", kind, "email", email, "error", err)
	}
}

type noopDispatcher struct{}

func (noopDispatcher) SendVerificationEmail(context.Context, string, string) error  { return nil }
func (noopDispatcher) SendPasswordResetEmail(context.Context, string, string) error { return nil }

func resolveDispatcher(mailer EmailDispatcher) EmailDispatcher {
	if mailer == nil {
		return noopDispatcher{}
	}
	return mailer
}
