package userauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// VerificationStatus tells a first time verification apart from a repeat
type VerificationStatus string

const (
	VerificationJustVerified    VerificationStatus = "verified"
	VerificationAlreadyVerified VerificationStatus = "already_verified"
)

// ResendVerificationMessage is returned for every resend request.
const ResendVerificationMessage = "If the account exists and is not verified, a new verification email has been sent"

// VerificationResult is the outcome of consuming a verification token
type VerificationResult struct {
	Account *Account           `json:"-"`
	Email   string             `json:"email"`
	Status  VerificationStatus `json:"status"`
	Message string             `json:"message"`
}

// EmailVerification issues and consumes email verification tokens.
type EmailVerification struct {
	store    AccountStore
	codec    *TokenCodec
	mailer   EmailDispatcher
	ttl      time.Duration
	logger   Logger
	activity ActivitySink
	timeout  time.Duration
}

// NewEmailVerification creates an EmailVerification flow
func NewEmailVerification(cfg Config, store AccountStore, codec *TokenCodec, mailer EmailDispatcher) *EmailVerification {
	return &EmailVerification{
		store:    store,
		codec:    codec,
		mailer:   mailer,
		ttl:      cfg.GetVerificationTokenTTL(),
		logger:   defLogger{},
		activity: noopActivitySink{},
		timeout:  10 * time.Second,
	}
}

// WithActivitySink sets the sink receiving verification events
func (v *EmailVerification) WithActivitySink(sink ActivitySink) *EmailVerification {
	v.activity = normalizeActivitySink(sink)
	return v
}

// WithLogger sets the logger
func (v *EmailVerification) WithLogger(logger Logger) *EmailVerification {
	v.logger = resolveLogger(logger)
	return v
}

// Issue mints a verification token for email
func (v *EmailVerification) Issue(email string) (string, error) {
	token, _, err := v.codec.Mint(TokenUseEmailVerification, NormalizeEmail(email), "", v.ttl)
	return token, err
}

// Send issues a token for email and hands it to the dispatcher. Dispatch
// failures are logged only.
func (v *EmailVerification) Send(ctx context.Context, email string) error {
	token, err := v.Issue(email)
	if err != nil {
		return err
	}
	dispatch(ctx, v.logger, "verification", email, func(ctx context.Context) error {
		return v.mailer.SendVerificationEmail(ctx, email, token)
	})
	return nil
}

// Consume validates token and marks the account verified. Consuming a
// token for an account that is already verified succeeds with
// VerificationAlreadyVerified.
func (v *EmailVerification) Consume(ctx context.Context, token string) (*VerificationResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return v.consume(ctx, token)
	}
}

func (v *EmailVerification) consume(ctx context.Context, token string) (*VerificationResult, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		if goerrors.Is(err, ErrTokenExpired) {
			return nil, ErrVerificationExpired
		}
		return nil, ErrVerificationInvalid
	}

	if claims.Subject == "" || claims.Use != TokenUseEmailVerification {
		return nil, ErrVerificationInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	flipped, err := v.store.MarkEmailVerified(ctx, claims.Subject)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		v.logger.Error("mark email verified failed", "email", claims.Subject, "error", err)
		return nil, storeError(err, "failed to verify email")
	}

	account, err := v.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, storeError(err, "failed to load verified account")
	}

	res := &VerificationResult{
		Account: account,
		Email:   account.Email,
		Status:  VerificationAlreadyVerified,
		Message: "Email already verified",
	}

	if flipped {
		res.Status = VerificationJustVerified
		res.Message = "Email verified successfully"
		v.logger.Info("email verified", "email", account.Email)
		recordActivity(ctx, v.activity, v.logger, ActivityEvent{
			EventType:  ActivityEventEmailVerified,
			AccountID:  account.ID.String(),
			Email:      account.Email,
			OccurredAt: v.codec.Now(),
		})
	}

	return res, nil
}

// Resend sends a new verification email when the account exists and is
// unverified. The response never reveals which case applied.
func (v *EmailVerification) Resend(ctx context.Context, email string) (string, error) {
	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	account, err := v.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			v.logger.Debug("verification resend for unknown email", "email", email)
			return ResendVerificationMessage, nil
		}
		return "", storeError(err, "failed to load account for verification resend")
	}

	if account.EmailVerified {
		return ResendVerificationMessage, nil
	}

	if err := v.Send(ctx, account.Email); err != nil {
		return "", err
	}

	return ResendVerificationMessage, nil
}
