package userauth

import (
	"context"
)

var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithAccount sets the authenticated account in the given context
func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey, account)
}

// AccountFromContext finds the account set by WithAccount.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// HasRole reports whether the account in ctx has exactly role
func HasRole(ctx context.Context, role Role) bool {
	account, ok := AccountFromContext(ctx)
	return ok && account.Role == role
}
