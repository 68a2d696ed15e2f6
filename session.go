package userauth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// SameSiteStrict is the only SameSite mode tokens are delivered with
	SameSiteStrict = "Strict"
	// DefaultAccessCookieName is used when config has no cookie name
	DefaultAccessCookieName = "access_token"
	// DefaultRefreshCookieName is used when config has no cookie name
	DefaultRefreshCookieName = "refresh_token"
	// TokenTypeBearer is the token_type of JSON responses
	TokenTypeBearer = "bearer"
)

// CookieSpec is a transport neutral cookie instruction.
type CookieSpec struct {
	Name     string
	Value    string
	Path     string
	MaxAge   time.Duration
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// IssuedToken is a signed token plus its delivery data.
type IssuedToken struct {
	Value      string
	ExpiresAt  time.Time
	TTL        time.Duration
	CookieName string
}

// Cookie returns the cookie carrying the token. MaxAge equals the TTL.
func (t IssuedToken) Cookie() CookieSpec {
	return CookieSpec{
		Name:     t.CookieName,
		Value:    t.Value,
		Path:     "/",
		MaxAge:   t.TTL,
		HTTPOnly: true,
		Secure:   true,
		SameSite: SameSiteStrict,
	}
}

// ExpiredCookie returns a cookie that clears name on the client.
func ExpiredCookie(name string) CookieSpec {
	return CookieSpec{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   true,
		SameSite: SameSiteStrict,
	}
}

// SessionTokens is the result of a successful login
type SessionTokens struct {
	Account *Account
	Access  IssuedToken
	Refresh IssuedToken
}

// Cookies returns the access and refresh cookies, in that order
func (s *SessionTokens) Cookies() []CookieSpec {
	return []CookieSpec{s.Access.Cookie(), s.Refresh.Cookie()}
}

// TokenResponse is the JSON body form for API clients
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Response returns the JSON body form of the session
func (s *SessionTokens) Response() TokenResponse {
	return TokenResponse{
		AccessToken:  s.Access.Value,
		RefreshToken: s.Refresh.Value,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.Access.TTL / time.Second),
	}
}

// SessionIssuer authenticates username and password and mints the
// access/refresh pair.
type SessionIssuer struct {
	store       AccountStore
	hasher      PasswordHasher
	codec       *TokenCodec
	accessTTL   time.Duration
	refreshTTL  time.Duration
	accessName  string
	refreshName string
	logger      Logger
	activity    ActivitySink

	dummyOnce sync.Once
	dummyHash string
}

// NewSessionIssuer creates a SessionIssuer
func NewSessionIssuer(cfg Config, store AccountStore, hasher PasswordHasher, codec *TokenCodec) *SessionIssuer {
	return &SessionIssuer{
		store:       store,
		hasher:      hasher,
		codec:       codec,
		accessTTL:   cfg.GetAccessTokenTTL(),
		refreshTTL:  cfg.GetRefreshTokenTTL(),
		accessName:  cookieName(cfg.GetAccessCookieName(), DefaultAccessCookieName),
		refreshName: cookieName(cfg.GetRefreshCookieName(), DefaultRefreshCookieName),
		logger:      defLogger{},
		activity:    noopActivitySink{},
	}
}

// WithLogger sets the logger
func (s *SessionIssuer) WithLogger(logger Logger) *SessionIssuer {
	s.logger = resolveLogger(logger)
	return s
}

// WithActivitySink sets the sink receiving login events
func (s *SessionIssuer) WithActivitySink(sink ActivitySink) *SessionIssuer {
	s.activity = normalizeActivitySink(sink)
	return s
}

// Login checks credentials and returns a fresh token pair. Unknown
// usernames and wrong passwords both fail with ErrInvalidCredentials.
func (s *SessionIssuer) Login(ctx context.Context, username, password string) (*SessionTokens, error) {
	account, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// keep timing close to the wrong password path
			s.hasher.Verify(password, s.placeholderHash())
			s.loginFailed(ctx, nil, username, "unknown username")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login store lookup failed", "username", username, "error", err)
		return nil, storeError(err, "failed to load account")
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.loginFailed(ctx, account, username, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		s.loginFailed(ctx, account, username, "email not verified")
		return nil, ErrEmailNotVerified
	}

	if !account.IsActive {
		s.loginFailed(ctx, account, username, "account inactive")
		return nil, ErrAccountInactive
	}

	access, accessExp, err := s.codec.Mint(TokenUseAccess, account.Email, account.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.codec.Mint(TokenUseRefresh, account.Email, "", s.refreshTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("login succeeded", "email", account.Email)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		AccountID:  account.ID.String(),
		Email:      account.Email,
		OccurredAt: s.codec.Now(),
	})

	return &SessionTokens{
		Account: account,
		Access: IssuedToken{
			Value:      access,
			ExpiresAt:  accessExp,
			TTL:        s.accessTTL,
			CookieName: s.accessName,
		},
		Refresh: IssuedToken{
			Value:      refresh,
			ExpiresAt:  refreshExp,
			TTL:        s.refreshTTL,
			CookieName: s.refreshName,
		},
	}, nil
}

func (s *SessionIssuer) loginFailed(ctx context.Context, account *Account, username, reason string) {
	s.logger.Info("login rejected", "username", username, "reason", reason)

	event := ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		Metadata:   map[string]any{"username": username, "reason": reason},
		OccurredAt: s.codec.Now(),
	}
	if account != nil {
		event.AccountID = account.ID.String()
		event.Email = account.Email
	}
	recordActivity(ctx, s.activity, s.logger, event)
}

func (s *SessionIssuer) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("placeholder-password")
	})
	return s.dummyHash
}

func cookieName(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
