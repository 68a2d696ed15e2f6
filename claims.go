package userauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse tells the token kinds apart. A refresh token will not pass
// where an access token is expected and vice versa.
type TokenUse string

const (
	TokenUseAccess            TokenUse = "access"
	TokenUseRefresh           TokenUse = "refresh"
	TokenUseEmailVerification TokenUse = "email_verification"
)

// Claims is the payload of every signed token. Subject is the account
// email.
type Claims struct {
	jwt.RegisteredClaims
	UserRole string   `json:"role,omitempty"`
	Use      TokenUse `json:"use,omitempty"`
}

// Email returns the subject claim
func (c *Claims) Email() string {
	return c.Subject
}

// Role returns the role claim. Only access tokens minted at login carry one.
func (c *Claims) Role() Role {
	return Role(c.UserRole)
}

// Expires returns the expiry or the zero time
func (c *Claims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time or the zero time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
