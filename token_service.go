package userauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenCodec signs and parses HMAC JWTs. It holds no mutable state and
// is safe for concurrent use.
type TokenCodec struct {
	signingKey []byte
	method     jwt.SigningMethod
	issuer     string
	clock      Clock
	logger     Logger
}

// NewTokenCodec creates a codec for the given secret and HMAC algorithm
// name (HS256, HS384, HS512).
func NewTokenCodec(signingKey, algorithm, issuer string) (*TokenCodec, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}

	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, ErrUnsupportedSigningMethod
	}

	return &TokenCodec{
		signingKey: []byte(signingKey),
		method:     method,
		issuer:     issuer,
		clock:      SystemClock,
		logger:     defLogger{},
	}, nil
}

// NewTokenCodecFromConfig creates a codec from cfg.
func NewTokenCodecFromConfig(cfg Config) (*TokenCodec, error) {
	return NewTokenCodec(cfg.GetSigningKey(), cfg.GetSigningMethod(), cfg.GetIssuer())
}

// WithClock sets the time source used for minting and expiry checks
func (c *TokenCodec) WithClock(clock Clock) *TokenCodec {
	c.clock = resolveClock(clock)
	return c
}

// WithLogger sets the logger
func (c *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	c.logger = resolveLogger(logger)
	return c
}

// Now returns the codec clock's current time
func (c *TokenCodec) Now() time.Time {
	return c.clock.Now()
}

// Algorithm returns the configured algorithm name
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// Encode signs claims. Claims without an expiry are rejected.
func (c *TokenCodec) Encode(claims *Claims) (string, error) {
	if claims == nil || claims.ExpiresAt == nil {
		return "", ErrMissingExpiry
	}

	token := jwt.NewWithClaims(c.method, claims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Decode verifies signature, algorithm and expiry. It returns
// ErrTokenExpired for a well formed token past its expiry and
// ErrTokenMalformed for everything else. There is no leeway: a token is
// rejected from its expiry second on.
func (c *TokenCodec) Decode(raw string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		c.logger.Debug("token decode failed", "error", err)
		return nil, ErrTokenMalformed
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// DecodeFor decodes raw and rejects tokens minted for another use.
func (c *TokenCodec) DecodeFor(raw string, use TokenUse) (*Claims, error) {
	claims, err := c.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Use != use || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// Mint builds and signs a token for subject that expires ttl from now.
// The returned expiry is truncated to the claim's second precision.
func (c *TokenCodec) Mint(use TokenUse, subject string, role Role, ttl time.Duration) (string, time.Time, error) {
	now := c.clock.Now()
	expiresAt := now.Add(ttl).Truncate(jwt.TimePrecision)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		UserRole: string(role),
		Use:      use,
	}

	token, err := c.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}
