package userauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger takes a message followed by key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the token lifetimes and signing options.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetPasswordResetTTL() time.Duration
	GetAccessCookieName() string
	GetRefreshCookieName() string
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// EmailDispatcher delivers the token emails. Dispatch failures are
// logged by the flows and never surface to the caller.
type EmailDispatcher interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// AccountStore is the persistence boundary for accounts. Lookups that
// find nothing return ErrAccountNotFound.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByResetToken(ctx context.Context, token string) (*Account, error)
	List(ctx context.Context, skip, limit int) ([]*Account, error)
	// Insert fails with ErrDuplicateEmail or ErrDuplicateUsername.
	Insert(ctx context.Context, account *Account) (*Account, error)
	Update(ctx context.Context, account *Account) (*Account, error)
	Delete(ctx context.Context, email string) error
	// MarkEmailVerified reports true only for the call that flipped the flag.
	MarkEmailVerified(ctx context.Context, email string) (bool, error)
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error
	// ClearResetToken removes token and expiry if token is still current.
	ClearResetToken(ctx context.Context, id uuid.UUID, token string) error
	// CompleteReset swaps the hash and clears the token in one update,
	// failing with ErrResetTokenInvalid when token is no longer current.
	CompleteReset(ctx context.Context, id uuid.UUID, token, passwordHash string) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] AUTH " + d.format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] AUTH " + d.format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] AUTH " + d.format(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] AUTH " + d.format(msg, args...))
}

func (d defLogger) format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }

func resolveLogger(logger Logger) Logger {
	if logger == nil {
		return defLogger{}
	}
	return logger
}
