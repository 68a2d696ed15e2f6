// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// SMTP holds outgoing mail settings
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Config holds all service settings. It implements userauth.Config.
type Config struct {
	SigningKey           string
	SigningMethod        string
	Issuer               string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	PasswordResetTTL     time.Duration
	AccessCookieName     string
	RefreshCookieName    string
	CookieSecure         bool

	HTTPAddr       string
	FrontendURL    string
	DatabaseDriver string
	DatabaseURL    string

	SMTP SMTP

	LogFormat string
	LogLevel  string

	LoginRateLimit    int
	RegisterRateLimit int
	RateLimitWindow   time.Duration
}

// Defaults returns the settings used when a key is unset. SigningKey has
// no default.
func Defaults() Config {
	return Config{
		SigningMethod:        "HS256",
		Issuer:               "go-userauth",
		AccessTokenTTL:       60 * time.Minute,
		RefreshTokenTTL:      720 * time.Hour,
		VerificationTokenTTL: 15 * time.Minute,
		PasswordResetTTL:     time.Hour,
		AccessCookieName:     "access_token",
		RefreshCookieName:    "refresh_token",
		CookieSecure:         true,
		HTTPAddr:             ":8000",
		FrontendURL:          "http://localhost:8000",
		DatabaseDriver:       "sqlite",
		DatabaseURL:          "file:userauth.db?cache=shared",
		SMTP: SMTP{
			Port: 587,
			From: "no-reply@localhost",
		},
		LogFormat:         "text",
		LogLevel:          "info",
		LoginRateLimit:    4,
		RegisterRateLimit: 5,
		RateLimitWindow:   time.Minute,
	}
}

// Load reads the given .env files (".env" when none are given, missing
// files are skipped) and then the process environment. Values already
// set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read env file "+file)
		}
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config using lookup for every key.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()
	r := reader{lookup: lookup}

	cfg.SigningKey = r.str("SECRET_KEY", cfg.SigningKey)
	cfg.SigningMethod = strings.ToUpper(r.str("ALGORITHM", cfg.SigningMethod))
	cfg.Issuer = r.str("JWT_ISSUER", cfg.Issuer)
	cfg.AccessTokenTTL = r.minutes("ACCESS_TOKEN_EXPIRE_MINUTES", cfg.AccessTokenTTL)
	cfg.RefreshTokenTTL = r.duration("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL)
	cfg.VerificationTokenTTL = r.minutes("EMAIL_VERIFICATION_TOKEN_EXPIRY", cfg.VerificationTokenTTL)
	cfg.PasswordResetTTL = r.duration("PASSWORD_RESET_TTL", cfg.PasswordResetTTL)
	cfg.AccessCookieName = r.str("ACCESS_COOKIE_NAME", cfg.AccessCookieName)
	cfg.RefreshCookieName = r.str("REFRESH_COOKIE_NAME", cfg.RefreshCookieName)
	cfg.CookieSecure = r.boolean("COOKIE_SECURE", cfg.CookieSecure)

	cfg.HTTPAddr = r.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.FrontendURL = strings.TrimRight(r.str("FRONTEND_URL", cfg.FrontendURL), "/")
	cfg.DatabaseDriver = strings.ToLower(r.str("DATABASE_DRIVER", cfg.DatabaseDriver))
	cfg.DatabaseURL = r.str("DATABASE_URL", cfg.DatabaseURL)

	cfg.SMTP.Host = r.str("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = r.integer("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = r.str("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Password = r.str("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = r.str("MAIL_FROM", cfg.SMTP.From)

	cfg.LogFormat = strings.ToLower(r.str("LOG_FORMAT", cfg.LogFormat))
	cfg.LogLevel = strings.ToLower(r.str("LOG_LEVEL", cfg.LogLevel))

	cfg.LoginRateLimit = r.integer("RATE_LIMIT_LOGIN", cfg.LoginRateLimit)
	cfg.RegisterRateLimit = r.integer("RATE_LIMIT_REGISTER", cfg.RegisterRateLimit)
	cfg.RateLimitWindow = r.duration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)

	if len(r.errs) > 0 {
		return nil, goerrors.New("invalid configuration values", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"keys": r.errs})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required keys and ranges
func (c Config) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.SigningMethod, validation.Required, validation.In("HS256", "HS384", "HS512")),
			validation.Field(&c.AccessTokenTTL, validation.Required, validation.Min(time.Second)),
			validation.Field(&c.RefreshTokenTTL, validation.Required, validation.Min(time.Second)),
			validation.Field(&c.VerificationTokenTTL, validation.Required, validation.Min(time.Second)),
			validation.Field(&c.PasswordResetTTL, validation.Required, validation.Min(time.Second)),
			validation.Field(&c.DatabaseDriver, validation.Required, validation.In("sqlite", "postgres")),
			validation.Field(&c.DatabaseURL, validation.Required),
			validation.Field(&c.FrontendURL, validation.Required, is.URL),
			validation.Field(&c.LogFormat, validation.In("text", "json")),
			validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.LoginRateLimit, validation.Min(0)),
			validation.Field(&c.RegisterRateLimit, validation.Min(0)),
		)
	}, "invalid configuration"); err != nil {
		return err
	}
	return nil
}

func (c Config) GetSigningKey() string                  { return c.SigningKey }
func (c Config) GetSigningMethod() string               { return c.SigningMethod }
func (c Config) GetIssuer() string                      { return c.Issuer }
func (c Config) GetAccessTokenTTL() time.Duration       { return c.AccessTokenTTL }
func (c Config) GetRefreshTokenTTL() time.Duration      { return c.RefreshTokenTTL }
func (c Config) GetVerificationTokenTTL() time.Duration { return c.VerificationTokenTTL }
func (c Config) GetPasswordResetTTL() time.Duration     { return c.PasswordResetTTL }
func (c Config) GetAccessCookieName() string            { return c.AccessCookieName }
func (c Config) GetRefreshCookieName() string           { return c.RefreshCookieName }

type reader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (r *reader) raw(key string) (string, bool) {
	value, ok := r.lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (r *reader) str(key, def string) string {
	if value, ok := r.raw(key); ok {
		return value
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	value, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, key)
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	value, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, key)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	value, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, key)
		return def
	}
	return d
}

// minutes reads a bare number of minutes. Go duration strings are
// accepted too.
func (r *reader) minutes(key string, def time.Duration) time.Duration {
	value, ok := r.raw(key)
	if !ok {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Minute
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, key)
		return def
	}
	return d
}
