package userauth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the persisted user record
type Account struct {
	bun.BaseModel            `bun:"table:accounts,alias:acc"`
	ID                       uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	FullName                 string     `bun:"full_name,notnull" json:"full_name"`
	Username                 string     `bun:"username,notnull,unique" json:"username"`
	Email                    string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash             string     `bun:"password_hash,notnull" json:"-"`
	Role                     Role       `bun:"role,notnull" json:"role"`
	IsActive                 bool       `bun:"is_active,notnull" json:"is_active"`
	EmailVerified            bool       `bun:"email_verified,notnull" json:"email_verified"`
	PasswordResetToken       *string    `bun:"password_reset_token" json:"-"`
	PasswordResetTokenExpiry *time.Time `bun:"password_reset_token_expiry" json:"-"`
	TimeRegistered           time.Time  `bun:"time_registered,notnull" json:"time_registered"`
}

// HasPendingReset reports whether a reset token is on record.
func (a *Account) HasPendingReset() bool {
	return a.PasswordResetToken != nil && *a.PasswordResetToken != ""
}

// ResetExpired reports whether the pending reset token can no longer be
// used at now, that is now is past the expiry. Accounts with no expiry on
// record count as expired.
func (a *Account) ResetExpired(now time.Time) bool {
	if a.PasswordResetTokenExpiry == nil {
		return true
	}
	return isPast(now, *a.PasswordResetTokenExpiry)
}

// NormalizeEmail lowercases and trims an email address. Every store
// lookup and write goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
