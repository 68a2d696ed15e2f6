package userauth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Dependencies are the collaborators shared by every flow
type Dependencies struct {
	Store    AccountStore
	Hasher   PasswordHasher
	Mailer   EmailDispatcher
	Clock    Clock
	Logger   Logger
	Activity ActivitySink
}

// Service bundles the flows built from one config and one store
type Service struct {
	Codec        *TokenCodec
	Sessions     *SessionIssuer
	Refresh      *RefreshFlow
	Verification *EmailVerification
	Resets       *PasswordReset
	Registrar    *Registrar
	Guard        *AccessGuard
	Admin        *AccountAdmin

	cfg Config
}

// NewService wires every flow. Config values are read once here.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if cfg == nil {
		return nil, goerrors.New("config is required", goerrors.CategoryBadInput)
	}

	if deps.Store == nil {
		return nil, goerrors.New("account store is required", goerrors.CategoryBadInput)
	}

	if deps.Hasher == nil {
		deps.Hasher = NewBcryptHasher()
	}

	logger := resolveLogger(deps.Logger)
	clock := resolveClock(deps.Clock)
	mailer := resolveDispatcher(deps.Mailer)
	activity := normalizeActivitySink(deps.Activity)

	codec, err := NewTokenCodecFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	codec.WithClock(clock).WithLogger(logger)

	verification := NewEmailVerification(cfg, deps.Store, codec, mailer).
		WithLogger(logger).
		WithActivitySink(activity)

	return &Service{
		Codec: codec,
		Sessions: NewSessionIssuer(cfg, deps.Store, deps.Hasher, codec).
			WithLogger(logger).
			WithActivitySink(activity),
		Refresh:      NewRefreshFlow(cfg, codec).WithLogger(logger),
		Verification: verification,
		Resets: NewPasswordReset(cfg, deps.Store, deps.Hasher, mailer).
			WithClock(clock).
			WithLogger(logger).
			WithActivitySink(activity),
		Registrar: NewRegistrar(deps.Store, deps.Hasher, verification).
			WithClock(clock).
			WithLogger(logger).
			WithActivitySink(activity),
		Guard: NewAccessGuard(deps.Store, codec).WithLogger(logger),
		Admin: NewAccountAdmin(deps.Store).
			WithClock(clock).
			WithLogger(logger).
			WithActivitySink(activity),
		cfg: cfg,
	}, nil
}

// AccessCookieName returns the configured access cookie name
func (s *Service) AccessCookieName() string {
	return cookieName(s.cfg.GetAccessCookieName(), DefaultAccessCookieName)
}

// RefreshCookieName returns the configured refresh cookie name
func (s *Service) RefreshCookieName() string {
	return cookieName(s.cfg.GetRefreshCookieName(), DefaultRefreshCookieName)
}
