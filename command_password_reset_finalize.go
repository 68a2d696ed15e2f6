package userauth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// CompletePasswordResetMessage carries the new password for a reset token
type CompletePasswordResetMessage struct {
	Token           string `json:"token" form:"token"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// Validate checks the password policy
func (m CompletePasswordResetMessage) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Password, passwordRules...),
		)
	}, "invalid new password"); err != nil {
		return err
	}
	return nil
}

// Complete sets the new password and clears the reset token in a single
// conditional update. A token can complete at most one reset. A
// confirmation mismatch leaves the token usable.
func (p *PasswordReset) Complete(ctx context.Context, msg CompletePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset finalization")
	default:
		return p.complete(ctx, msg)
	}
}

func (p *PasswordReset) complete(ctx context.Context, msg CompletePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if msg.Token == "" {
		return ErrResetTokenInvalid
	}

	account, err := p.store.FindByResetToken(ctx, msg.Token)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return ErrResetTokenInvalid
		}
		return storeError(err, "could not retrieve password reset request")
	}

	if msg.Password != msg.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if account.ResetExpired(p.clock.Now()) {
		if err := p.store.ClearResetToken(ctx, account.ID, msg.Token); err != nil {
			p.logger.Warn("failed to clear expired reset token", "email", account.Email, "error", err)
		}
		return ErrResetTokenExpired
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	passwordHash, err := p.hasher.Hash(msg.Password)
	if err != nil {
		return err
	}

	if err := p.store.CompleteReset(ctx, account.ID, msg.Token, passwordHash); err != nil {
		if goerrors.Is(err, ErrResetTokenInvalid) {
			return ErrResetTokenInvalid
		}
		return storeError(err, "failed to update account password")
	}

	p.logger.Info("password reset completed", "email", account.Email)
	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		AccountID:  account.ID.String(),
		Email:      account.Email,
		OccurredAt: p.clock.Now(),
	})

	return nil
}
