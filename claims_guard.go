package userauth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AccessGuard resolves the principal behind an access token and checks
// its role. The role is always read from the account record.
type AccessGuard struct {
	store  AccountStore
	codec  *TokenCodec
	logger Logger
}

// NewAccessGuard creates an AccessGuard
func NewAccessGuard(store AccountStore, codec *TokenCodec) *AccessGuard {
	return &AccessGuard{
		store:  store,
		codec:  codec,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (g *AccessGuard) WithLogger(logger Logger) *AccessGuard {
	g.logger = resolveLogger(logger)
	return g
}

// CurrentPrincipal returns the account for a valid access token. Any
// token problem is ErrUnauthorized; a valid token for a deleted account
// is ErrAccountNotFound.
func (g *AccessGuard) CurrentPrincipal(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := g.codec.Decode(token)
	if err != nil {
		g.logger.Debug("access token rejected", "reason", err)
		return nil, ErrUnauthorized
	}

	if claims.Subject == "" || claims.Use != TokenUseAccess {
		g.logger.Debug("access token rejected", "reason", "wrong token use or missing subject")
		return nil, ErrUnauthorized
	}

	account, err := g.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err, "failed to load principal")
	}

	return account, nil
}

// RequireRole returns account when its role equals role, else ErrForbidden.
func (g *AccessGuard) RequireRole(account *Account, role Role) (*Account, error) {
	if account == nil || account.Role != role {
		return nil, ErrForbidden
	}
	return account, nil
}
