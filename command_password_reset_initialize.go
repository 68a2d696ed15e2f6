package userauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResetRequestedMessage is returned for every reset request.
const ResetRequestedMessage = "If the email is registered, a password reset link has been sent"

// resetTokenBytes is the random size of opaque reset tokens
const resetTokenBytes = 32

// PasswordReset runs the opaque token reset flow. Token and expiry live
// on the account record and are set and cleared together.
type PasswordReset struct {
	store    AccountStore
	hasher   PasswordHasher
	mailer   EmailDispatcher
	clock    Clock
	ttl      time.Duration
	logger   Logger
	activity ActivitySink
	timeout  time.Duration
}

// NewPasswordReset creates a PasswordReset flow
func NewPasswordReset(cfg Config, store AccountStore, hasher PasswordHasher, mailer EmailDispatcher) *PasswordReset {
	return &PasswordReset{
		store:    store,
		hasher:   hasher,
		mailer:   mailer,
		clock:    SystemClock,
		ttl:      cfg.GetPasswordResetTTL(),
		logger:   defLogger{},
		activity: noopActivitySink{},
		timeout:  10 * time.Second,
	}
}

// WithClock sets the time source used for expiry
func (p *PasswordReset) WithClock(clock Clock) *PasswordReset {
	p.clock = resolveClock(clock)
	return p
}

// WithLogger sets the logger
func (p *PasswordReset) WithLogger(logger Logger) *PasswordReset {
	p.logger = resolveLogger(logger)
	return p
}

// WithActivitySink sets the sink receiving reset events
func (p *PasswordReset) WithActivitySink(sink ActivitySink) *PasswordReset {
	p.activity = normalizeActivitySink(sink)
	return p
}

// Request stores a fresh reset token on the account and emails it.
// Unknown emails get the same outcome as known ones. A new request
// replaces any pending token.
func (p *PasswordReset) Request(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset request")
	default:
		return p.request(ctx, email)
	}
}

func (p *PasswordReset) request(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	account, err := p.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			p.logger.Debug("password reset requested for unknown email", "email", email)
			return nil
		}
		return storeError(err, "failed to load account for password reset")
	}

	token, err := GenerateOpaqueToken(resetTokenBytes)
	if err != nil {
		return err
	}

	expiry := p.clock.Now().Add(p.ttl)
	if err := p.store.SetResetToken(ctx, account.ID, token, expiry); err != nil {
		p.logger.Error("failed to persist reset token", "email", account.Email, "error", err)
		return storeError(err, "failed to store password reset token")
	}

	dispatch(ctx, p.logger, "password_reset", account.Email, func(ctx context.Context) error {
		return p.mailer.SendPasswordResetEmail(ctx, account.Email, token)
	})

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequested,
		AccountID:  account.ID.String(),
		Email:      account.Email,
		Metadata:   map[string]any{"expires_at": expiry},
		OccurredAt: p.clock.Now(),
	})

	return nil
}

// ValidateToken reports whether token is on record and not yet expired.
// It is used to decide between the reset form and the invalid page.
func (p *PasswordReset) ValidateToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	account, err := p.store.FindByResetToken(ctx, token)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, storeError(err, "failed to load password reset token")
	}

	return !account.ResetExpired(p.clock.Now()), nil
}
