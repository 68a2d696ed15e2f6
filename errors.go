package userauth

import (
	"github.com/goliatone/go-errors"
)

// Text codes not covered by go-errors auth codes.
const (
	TextCodeRefreshExpired      = "REFRESH_EXPIRED"
	TextCodeRefreshInvalid      = "REFRESH_INVALID"
	TextCodeVerificationInvalid = "VERIFICATION_INVALID"
	TextCodeResetTokenInvalid   = "RESET_TOKEN_INVALID"
	TextCodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
	TextCodePasswordMismatch    = "PASSWORD_MISMATCH"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeDuplicateUsername   = "DUPLICATE_USERNAME"
	TextCodeUnauthorized        = "UNAUTHORIZED"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeMissingExpiry       = "MISSING_EXPIRY"
	TextCodeUnsupportedMethod   = "UNSUPPORTED_SIGNING_METHOD"
	TextCodeMissingSigningKey   = "MISSING_SIGNING_KEY"
)

// Sentinel errors are returned as-is so callers can match them with
// errors.Is. Never wrap them, go-errors clones on Wrap.
var (
	// ErrInvalidCredentials covers both unknown usernames and bad passwords.
	ErrInvalidCredentials = errors.New("incorrect username or password", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(errors.TextCodeInvalidCredentials)

	ErrEmailNotVerified = errors.New("email not verified, check your inbox", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(errors.TextCodeVerificationRequired)

	ErrAccountInactive = errors.New("account is disabled", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(errors.TextCodeAccountDisabled)

	ErrTokenExpired = errors.New("token has expired", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(errors.TextCodeTokenExpired)

	ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(errors.TextCodeTokenMalformed)

	ErrMissingExpiry = errors.New("token claims must carry an expiry", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeMissingExpiry)

	ErrUnsupportedSigningMethod = errors.New("signing method must be an HMAC algorithm", errors.CategoryBadInput).
					WithCode(errors.CodeBadRequest).
					WithTextCode(TextCodeUnsupportedMethod)

	ErrMissingSigningKey = errors.New("signing key must not be empty", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeMissingSigningKey)

	ErrRefreshExpired = errors.New("refresh token expired, login again", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeRefreshExpired)

	ErrRefreshInvalid = errors.New("invalid refresh token", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeRefreshInvalid)

	ErrVerificationExpired = errors.New("verification link expired", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(errors.TextCodeVerificationExpired)

	ErrVerificationInvalid = errors.New("invalid verification link", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeVerificationInvalid)

	ErrResetTokenInvalid = errors.New("invalid or expired reset link", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeResetTokenInvalid)

	ErrResetTokenExpired = errors.New("reset link has expired", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeResetTokenExpired)

	ErrPasswordMismatch = errors.New("passwords do not match", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodePasswordMismatch)

	ErrNoEmptyString = errors.New("password can't be an empty string", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest).
				WithTextCode(errors.TextCodeEmptyPassword)

	ErrAccountNotFound = errors.New("user not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound).
				WithTextCode(TextCodeAccountNotFound)

	ErrDuplicateEmail = errors.New("email already registered", errors.CategoryConflict).
				WithCode(errors.CodeConflict).
				WithTextCode(TextCodeDuplicateEmail)

	ErrDuplicateUsername = errors.New("username exists, choose another one", errors.CategoryConflict).
				WithCode(errors.CodeConflict).
				WithTextCode(TextCodeDuplicateUsername)

	ErrUnauthorized = errors.New("could not validate credentials", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeUnauthorized)

	ErrForbidden = errors.New("admin privileges required", errors.CategoryAuthz).
			WithCode(errors.CodeForbidden).
			WithTextCode(TextCodeForbidden)
)

// IsTokenExpiredError reports whether err is an expired token error.
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsMalformedError reports whether err is a malformed token error.
func IsMalformedError(err error) bool {
	return errors.Is(err, ErrTokenMalformed)
}

// storeError wraps infrastructure failures. Domain sentinels pass through.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, message).
		WithCode(errors.CodeInternal)
}
