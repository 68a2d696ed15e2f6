package userauth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// RefreshFlow exchanges a refresh token for a new access token. Refresh
// tokens are not rotated.
type RefreshFlow struct {
	codec      *TokenCodec
	accessTTL  time.Duration
	accessName string
	logger     Logger
}

// NewRefreshFlow creates a RefreshFlow
func NewRefreshFlow(cfg Config, codec *TokenCodec) *RefreshFlow {
	return &RefreshFlow{
		codec:      codec,
		accessTTL:  cfg.GetAccessTokenTTL(),
		accessName: cookieName(cfg.GetAccessCookieName(), DefaultAccessCookieName),
		logger:     defLogger{},
	}
}

// WithLogger sets the logger
func (f *RefreshFlow) WithLogger(logger Logger) *RefreshFlow {
	f.logger = resolveLogger(logger)
	return f
}

// Refresh mints an access token for the refresh token's subject. The
// role is taken from the refresh token and is not re-read from the
// account, so the new access token carries none.
func (f *RefreshFlow) Refresh(ctx context.Context, refreshToken string) (*IssuedToken, error) {
	claims, err := f.codec.Decode(refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrRefreshExpired
		}
		return nil, ErrRefreshInvalid
	}

	if claims.Subject == "" || claims.Use != TokenUseRefresh {
		f.logger.Info("refresh rejected", "reason", "wrong token use or missing subject", "use", claims.Use)
		return nil, ErrRefreshInvalid
	}

	access, exp, err := f.codec.Mint(TokenUseAccess, claims.Subject, claims.Role(), f.accessTTL)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		Value:      access,
		ExpiresAt:  exp,
		TTL:        f.accessTTL,
		CookieName: f.accessName,
	}, nil
}
