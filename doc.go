// Package userauth implements account authentication and the token
// lifecycle around it: password login, JWT access and refresh tokens,
// email verification and password reset.
//
// Flows:
//   - SessionIssuer checks username and password and mints an access
//     token (subject, role) and a refresh token (subject only).
//   - RefreshFlow exchanges a refresh token for a new access token.
//     Refresh tokens are stateless and not rotated.
//   - EmailVerification mints signed verification tokens and flips the
//     account flag exactly once.
//   - PasswordReset stores an opaque random token on the account and
//     consumes it with a single conditional update.
//   - AccessGuard turns an access token into an Account and enforces
//     roles from the stored record.
//
// Errors:
//   - Every domain failure is a go-errors sentinel (ErrInvalidCredentials,
//     ErrTokenExpired, ...) carrying category, HTTP code and text code.
//     Match them with errors.Is. Store failures surface as internal
//     errors.
//
// Transport packages (httpapi, middleware/jwtware) and infrastructure
// (database, mailer, config, logging) live in sub packages and depend
// on this one, never the other way around.
package userauth
