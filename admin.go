package userauth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultListLimit is used when List gets a non-positive limit
	DefaultListLimit = 10
	// MaxListLimit caps a single List page
	MaxListLimit = 100
)

// AccountAdmin holds the admin account operations. Role checks happen
// before these are called.
type AccountAdmin struct {
	store    AccountStore
	clock    Clock
	logger   Logger
	activity ActivitySink
}

// NewAccountAdmin creates an AccountAdmin
func NewAccountAdmin(store AccountStore) *AccountAdmin {
	return &AccountAdmin{
		store:    store,
		clock:    SystemClock,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

// WithLogger sets the logger
func (a *AccountAdmin) WithLogger(logger Logger) *AccountAdmin {
	a.logger = resolveLogger(logger)
	return a
}

// WithActivitySink sets the sink receiving admin events
func (a *AccountAdmin) WithActivitySink(sink ActivitySink) *AccountAdmin {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithClock sets the clock
func (a *AccountAdmin) WithClock(clock Clock) *AccountAdmin {
	a.clock = resolveClock(clock)
	return a
}

// List returns a page of accounts ordered by registration time
func (a *AccountAdmin) List(ctx context.Context, skip, limit int) ([]*Account, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	accounts, err := a.store.List(ctx, skip, limit)
	if err != nil {
		return nil, storeError(err, "failed to list accounts")
	}
	return accounts, nil
}

// Get returns the account registered with email
func (a *AccountAdmin) Get(ctx context.Context, email string) (*Account, error) {
	account, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeError(err, "failed to load account")
	}
	return account, nil
}

// Delete removes the account registered with email
func (a *AccountAdmin) Delete(ctx context.Context, email string) error {
	account, err := a.Get(ctx, email)
	if err != nil {
		return err
	}

	if err := a.store.Delete(ctx, account.Email); err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return storeError(err, "failed to delete account")
	}

	a.logger.Info("account deleted", "email", account.Email)
	event := ActivityEvent{
		EventType:  ActivityEventAccountDeleted,
		AccountID:  account.ID.String(),
		Email:      account.Email,
		OccurredAt: a.clock.Now(),
	}
	if actor, ok := AccountFromContext(ctx); ok {
		event.Metadata = map[string]any{
			ActivityMetadataActorID: actor.ID.String(),
			"actor_email":           actor.Email,
		}
	}
	recordActivity(ctx, a.activity, a.logger, event)
	return nil
}
