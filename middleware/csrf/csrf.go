// Package csrf protects HTML form posts with a signed per-form token.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

var (
	ErrTokenMissing = goerrors.New("CSRF token missing", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode("CSRF_TOKEN_MISSING")
	ErrTokenMismatch = goerrors.New("CSRF token mismatch", goerrors.CategoryAuthz).
				WithCode(goerrors.CodeForbidden).
				WithTextCode("CSRF_TOKEN_MISMATCH")
	ErrTokenExpired = goerrors.New("CSRF token expired", goerrors.CategoryAuthz).
			WithCode(goerrors.CodeForbidden).
			WithTextCode("CSRF_TOKEN_EXPIRED")
)

// DefaultTokenLength is the nonce size in bytes
const DefaultTokenLength = 32

// DefaultContextKey is the Locals key holding the token
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the form field carrying the token
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the header carrying the token
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(*fiber.Ctx) bool

	// TokenLength defines the nonce length
	TokenLength int

	// ContextKey defines the Locals key for the token
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header name for the token
	HeaderName string

	// TokenLookup defines where to look for the token
	// Format: "form:_token,header:X-CSRF-Token"
	TokenLookup string

	// KeyFunc returns the value a token is bound to. Defaults to the
	// client IP.
	KeyFunc func(*fiber.Ctx) string

	// Storage keeps one token per key. When nil tokens are stateless
	// and signed with SecureKey.
	Storage Storage

	// ErrorHandler defines the error handler
	ErrorHandler fiber.ErrorHandler

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	// Expiration defines how long tokens are valid
	Expiration time.Duration

	// SecureKey signs stateless tokens. A random key is generated when
	// empty, which only works for a single process.
	SecureKey []byte

	// Now is the time source
	Now func() time.Time
}

// Storage interface for storing and retrieving CSRF tokens
type Storage interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
	Delete(key string) error
}

// TokenExtractor defines a function to extract token from request
type TokenExtractor func(*fiber.Ctx) string

// New creates a new CSRF middleware
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Skip != nil && cfg.Skip(c) {
			return c.Next()
		}

		token, err := getOrGenerateToken(c, cfg)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, token)
		c.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)

		// safe methods don't require validation
		if slices.Contains(cfg.SafeMethods, strings.ToUpper(c.Method())) {
			return c.Next()
		}

		if err := validateToken(c, cfg, token); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.Storage != nil {
			// rotate after use
			_ = cfg.Storage.Delete(storageKey(c, cfg))
		}

		return c.Next()
	}
}

// Token returns the token stored by the middleware for this request
func Token(c *fiber.Ctx, key ...string) string {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	token, _ := c.Locals(k).(string)
	return token
}

// TemplateData returns the csrf_token and csrf_field template bindings
func TemplateData(c *fiber.Ctx, key ...string) map[string]any {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	token := Token(c, k)
	field, _ := c.Locals(k + "_field").(string)
	if field == "" {
		field = DefaultFormFieldName
	}

	return map[string]any{
		"csrf_token":      token,
		"csrf_field_name": field,
		"csrf_field":      `<input type="hidden" name="` + html.EscapeString(field) + `" value="` + html.EscapeString(token) + `">`,
	}
}

func getOrGenerateToken(c *fiber.Ctx, cfg Config) (string, error) {
	if cfg.Storage == nil {
		return generateStatelessToken(c, cfg)
	}

	key := storageKey(c, cfg)
	if token, err := cfg.Storage.Get(key); err == nil && token != "" {
		return token, nil
	}

	token, err := generateToken(cfg.TokenLength)
	if err != nil {
		return "", err
	}

	if err := cfg.Storage.Set(key, token, cfg.Expiration); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store csrf token")
	}
	return token, nil
}

func validateToken(c *fiber.Ctx, cfg Config, expected string) error {
	received := extractToken(c, cfg)
	if received == "" {
		return ErrTokenMissing
	}

	if cfg.Storage != nil {
		if expected == "" || subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
			return ErrTokenMismatch
		}
		return nil
	}

	return validateStatelessToken(c, cfg, received)
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return hex.EncodeToString(bytes), nil
}

// stateless tokens are base64(timestamp:nonce:sig) where sig covers the
// bound key as well
func generateStatelessToken(c *fiber.Ctx, cfg Config) (string, error) {
	nonce, err := generateToken(cfg.TokenLength)
	if err != nil {
		return "", err
	}

	payload := strconv.FormatInt(cfg.Now().UTC().Unix(), 10) + ":" + nonce
	sig := sign(cfg.SecureKey, payload, cfg.KeyFunc(c))

	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + sig)), nil
}

func validateStatelessToken(c *fiber.Ctx, cfg Config, token string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	expected := sign(cfg.SecureKey, parts[0]+":"+parts[1], cfg.KeyFunc(c))
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 && !cfg.Now().UTC().Before(time.Unix(timestamp, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}

	return nil
}

func sign(key []byte, payload, boundTo string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	mac.Write([]byte{0})
	mac.Write([]byte(boundTo))
	return hex.EncodeToString(mac.Sum(nil))
}

func extractToken(c *fiber.Ctx, cfg Config) string {
	for _, extractor := range getExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName) {
		if token := extractor(c); token != "" {
			return token
		}
	}
	return ""
}

func storageKey(c *fiber.Ctx, cfg Config) string {
	return "csrf_" + cfg.KeyFunc(c)
}

// getExtractors returns token extractors based on configuration
func getExtractors(tokenLookup, formField, header string) []TokenExtractor {
	if tokenLookup == "" {
		return []TokenExtractor{
			extractorFromForm(formField),
			extractorFromHeader(header),
		}
	}

	var extractors []TokenExtractor
	for _, part := range strings.Split(tokenLookup, ",") {
		part = strings.TrimSpace(part)
		if field, ok := strings.CutPrefix(part, "form:"); ok {
			extractors = append(extractors, extractorFromForm(field))
		} else if name, ok := strings.CutPrefix(part, "header:"); ok {
			extractors = append(extractors, extractorFromHeader(name))
		}
	}
	return extractors
}

func extractorFromForm(fieldName string) TokenExtractor {
	return func(c *fiber.Ctx) string {
		return c.FormValue(fieldName)
	}
}

func extractorFromHeader(headerName string) TokenExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = time.Hour
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string {
			return "ip:" + c.IP()
		}
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ *fiber.Ctx, err error) error {
			return err
		}
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey, cfg.Storage)

	return cfg
}

func initializeSecureKey(current []byte, storage Storage) []byte {
	if storage != nil {
		return current
	}
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
