package jwtware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	userauth "github.com/goliatone/go-userauth"
)

var (
	defaultTokenLookup = "cookie:" + userauth.DefaultAccessCookieName + ",header:" + fiber.HeaderAuthorization

	// ErrJWTMissingOrMalformed is returned when no extractor finds a token
	ErrJWTMissingOrMalformed = goerrors.New("missing or malformed JWT", goerrors.CategoryAuth).
					WithCode(goerrors.CodeUnauthorized).
					WithTextCode(userauth.TextCodeUnauthorized)
)

// Guard resolves the principal behind an access token and checks roles.
// *userauth.AccessGuard implements it.
type Guard interface {
	CurrentPrincipal(ctx context.Context, token string) (*userauth.Account, error)
	RequireRole(account *userauth.Account, role userauth.Role) (*userauth.Account, error)
}

// ValidationListener runs after the principal is resolved and before
// role checks.
type ValidationListener func(c *fiber.Ctx, account *userauth.Account) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Guard is required
	Guard Guard
	// ContextKey is the Locals key holding the *userauth.Account
	ContextKey string
	// TokenLookup is a comma separated list of source:name pairs, tried
	// in order: "cookie:access_token,header:Authorization,query:token"
	TokenLookup string
	AuthScheme  string
	// RequiredRole rejects principals with any other role
	RequiredRole userauth.Role

	ValidationListeners []ValidationListener

	// ContextEnricher propagates the principal to the request's user context
	ContextEnricher func(ctx context.Context, account *userauth.Account) context.Context
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		candidates, err := ExtractRawTokens(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		account, err := cfg.resolvePrincipal(c, candidates)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := cfg.runValidationListeners(c, account); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.RequiredRole != "" {
			if _, err := cfg.Guard.RequireRole(account, cfg.RequiredRole); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, account)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), account))
		}

		return cfg.SuccessHandler(c)
	}
}

// Principal returns the account stored by the middleware under key.
func Principal(c *fiber.Ctx, key ...string) (*userauth.Account, bool) {
	k := "user"
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	account, ok := c.Locals(k).(*userauth.Account)
	return account, ok && account != nil
}

// ExtractRawTokens returns every token found by extractors, in lookup
// order and without duplicates.
func ExtractRawTokens(c *fiber.Ctx, extractors []JWTExtractor) ([]string, error) {
	var tokens []string
	err := error(ErrJWTMissingOrMalformed)

	seen := make(map[string]struct{}, len(extractors))
	for _, extractor := range extractors {
		raw, extractErr := extractor(c)
		if raw == "" || extractErr != nil {
			if len(tokens) == 0 && extractErr != nil {
				err = extractErr
			}
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		tokens = append(tokens, raw)
	}

	if len(tokens) == 0 {
		return nil, err
	}
	return tokens, nil
}

// resolvePrincipal tries candidates in order. A rejected token falls
// through to the next source, so a stale cookie does not hide a valid
// Authorization header. The first rejection is reported when all fail.
func (cfg *Config) resolvePrincipal(c *fiber.Ctx, candidates []string) (*userauth.Account, error) {
	var firstErr error
	for _, raw := range candidates {
		account, err := cfg.Guard.CurrentPrincipal(c.UserContext(), raw)
		if err == nil {
			return account, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.Guard == nil {
		panic("AUTH: JWT middleware configuration: Guard is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	message := "could not validate credentials"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			status = richErr.Code
		}
		message = richErr.Message
	}

	return c.Status(status).JSON(fiber.Map{"detail": message})
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, account *userauth.Account) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, account); err != nil {
			return err
		}
	}
	return nil
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

// jwtFromHeader expects "<scheme> <token>"
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
