// Package httpapi exposes the account flows over fiber.
package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/middleware/csrf"
	"github.com/goliatone/go-userauth/middleware/jwtware"
	"github.com/goliatone/go-userauth/views"
)

// ContextKey is the Locals key holding the authenticated account
const ContextKey = "user"

type Routes struct {
	Users string
	Admin string
}

type Views struct {
	PasswordResetForm   string
	PasswordResetResult string
}

type Controller struct {
	Debug         bool
	Logger        userauth.Logger
	Service       *userauth.Service
	Routes        *Routes
	Views         *Views
	SecureCookies bool
	LoginLimit    int
	RegisterLimit int
	LimitWindow   time.Duration
	CSRFKey       []byte
}

type ControllerOption func(*Controller) *Controller

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func WithLogger(logger userauth.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithSecureCookies toggles the Secure cookie flag. Only turn it off for
// local development over plain HTTP.
func WithSecureCookies(secure bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.SecureCookies = secure
		return c
	}
}

// WithRateLimits sets the per client IP limits for login and register
// inside window. Zero disables a limit.
func WithRateLimits(login, register int, window time.Duration) ControllerOption {
	return func(c *Controller) *Controller {
		c.LoginLimit = login
		c.RegisterLimit = register
		if window > 0 {
			c.LimitWindow = window
		}
		return c
	}
}

// WithCSRFKey sets the key signing the password reset form tokens. It
// must be at least 32 bytes and shared by every instance.
func WithCSRFKey(key []byte) ControllerOption {
	return func(c *Controller) *Controller {
		c.CSRFKey = key
		return c
	}
}

func NewController(svc *userauth.Service, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:        userauth.NopLogger(),
		Service:       svc,
		SecureCookies: true,
		LoginLimit:    4,
		RegisterLimit: 5,
		LimitWindow:   time.Minute,
		Routes: &Routes{
			Users: "/users",
			Admin: "/admin",
		},
		Views: &Views{
			PasswordResetForm:   views.PasswordResetForm,
			PasswordResetResult: views.PasswordResetResult,
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing userauth.Service in http controller...")
	}

	return c
}

// RegisterRoutes mounts the user and admin endpoints on app
func RegisterRoutes(app fiber.Router, svc *userauth.Service, opts ...ControllerOption) *Controller {
	c := NewController(svc, opts...)

	protected := c.Protected("")
	adminOnly := c.Protected(userauth.RoleAdmin)
	resetForm := c.resetFormGuard()

	users := app.Group(c.Routes.Users)
	users.Post("/register", c.limit(c.RegisterLimit), c.Register).Name("users.register")
	users.Post("/login", c.limit(c.LoginLimit), c.Login).Name("users.login")
	users.Post("/refresh", c.Refresh).Name("users.refresh")
	users.Post("/logout", c.Logout).Name("users.logout")
	users.Get("/verify", c.VerifyEmail).Name("users.verify")
	users.Post("/resend-verification", c.ResendVerification).Name("users.verify.resend")
	users.Post("/password-reset", c.PasswordResetRequest).Name("users.password-reset")
	users.Get("/password-reset/:token", resetForm, c.PasswordResetForm).Name("users.password-reset.form")
	users.Post("/password-reset/:token", resetForm, c.PasswordResetComplete).Name("users.password-reset.complete")
	users.Get("/me", protected, c.Me).Name("users.me")

	admin := app.Group(c.Routes.Admin, adminOnly)
	admin.Get("/users", c.AdminList).Name("admin.users.list")
	admin.Get("/users/:email", c.AdminGet).Name("admin.users.get")
	admin.Delete("/users/:email", c.AdminDelete).Name("admin.users.delete")

	return c
}

// Protected returns the access token middleware, optionally requiring role
func (a *Controller) Protected(role userauth.Role) fiber.Handler {
	return jwtware.New(jwtware.Config{
		Guard:           a.Service.Guard,
		ContextKey:      ContextKey,
		TokenLookup:     "cookie:" + a.Service.AccessCookieName() + ",header:" + fiber.HeaderAuthorization,
		RequiredRole:    role,
		ContextEnricher: userauth.WithAccount,
		ErrorHandler: func(_ *fiber.Ctx, err error) error {
			return err
		},
	})
}

// resetFormGuard binds form tokens to the reset token in the path. JSON
// requests skip the check.
func (a *Controller) resetFormGuard() fiber.Handler {
	return csrf.New(csrf.Config{
		SecureKey: a.CSRFKey,
		KeyFunc: func(c *fiber.Ctx) string {
			return "password-reset:" + c.Params("token")
		},
		Skip: func(c *fiber.Ctx) bool {
			return c.Is("json")
		},
	})
}

func (a *Controller) limit(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: a.LimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return goerrors.New("too many requests, slow down", goerrors.CategoryRateLimit).
				WithCode(goerrors.CodeTooManyRequests).
				WithTextCode(goerrors.TextCodeTooManyAttempts)
		},
	})
}

func (a *Controller) Register(c *fiber.Ctx) error {
	payload := userauth.RegisterAccountMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	account, err := a.Service.Registrar.Register(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

func (a *Controller) Login(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	session, err := a.Service.Sessions.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	for _, ck := range session.Cookies() {
		a.setCookie(c, ck)
	}

	if wantsTokenBody(c) {
		return c.JSON(session.Response())
	}
	return c.JSON(MessageResponse{Message: "Login successful"})
}

func (a *Controller) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(a.Service.RefreshCookieName())
	if token == "" {
		payload := RefreshRequest{}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&payload); err != nil {
				return badBody(err)
			}
		}
		token = payload.RefreshToken
	}

	access, err := a.Service.Refresh.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}

	a.setCookie(c, access.Cookie())
	return c.JSON(userauth.TokenResponse{
		AccessToken: access.Value,
		TokenType:   userauth.TokenTypeBearer,
		ExpiresIn:   int64(access.TTL / time.Second),
	})
}

func (a *Controller) Logout(c *fiber.Ctx) error {
	a.setCookie(c, userauth.ExpiredCookie(a.Service.AccessCookieName()))
	a.setCookie(c, userauth.ExpiredCookie(a.Service.RefreshCookieName()))
	return c.JSON(MessageResponse{Message: "Logged out"})
}

func (a *Controller) VerifyEmail(c *fiber.Ctx) error {
	res, err := a.Service.Verification.Consume(c.UserContext(), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (a *Controller) ResendVerification(c *fiber.Ctx) error {
	payload := EmailRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	msg, err := a.Service.Verification.Resend(c.UserContext(), payload.Email)
	if err != nil {
		return err
	}
	return c.JSON(MessageResponse{Message: msg})
}

func (a *Controller) PasswordResetRequest(c *fiber.Ctx) error {
	payload := EmailRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	if err := a.Service.Resets.Request(c.UserContext(), payload.Email); err != nil {
		return err
	}
	return c.JSON(MessageResponse{Message: userauth.ResetRequestedMessage})
}

func (a *Controller) PasswordResetForm(c *fiber.Ctx) error {
	token := c.Params("token")

	ok, err := a.Service.Resets.ValidateToken(c.UserContext(), token)
	if err != nil {
		return err
	}

	if !ok {
		return a.renderResetResult(c, fiber.StatusBadRequest, false, userauth.ErrResetTokenInvalid.Message)
	}

	return c.Render(a.Views.PasswordResetForm, formBindings(c, token, ""))
}

func (a *Controller) PasswordResetComplete(c *fiber.Ctx) error {
	payload := userauth.CompletePasswordResetMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}
	payload.Token = c.Params("token")

	if a.Debug {
		a.Logger.Debug("password reset payload", "token", payload.Token)
	}

	err := a.Service.Resets.Complete(c.UserContext(), payload)

	if c.Is("json") || wantsTokenBody(c) {
		if err != nil {
			return err
		}
		return c.JSON(MessageResponse{Message: "Password has been reset successfully"})
	}

	switch {
	case err == nil:
		return a.renderResetResult(c, fiber.StatusOK, true, "Password has been reset successfully")
	case goerrors.Is(err, userauth.ErrPasswordMismatch):
		return c.Status(fiber.StatusBadRequest).Render(a.Views.PasswordResetForm,
			formBindings(c, payload.Token, userauth.ErrPasswordMismatch.Message))
	case goerrors.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).Render(a.Views.PasswordResetForm,
			formBindings(c, payload.Token, validationMessage(err)))
	case goerrors.Is(err, userauth.ErrResetTokenExpired), goerrors.Is(err, userauth.ErrResetTokenInvalid):
		var richErr *goerrors.Error
		goerrors.As(err, &richErr)
		return a.renderResetResult(c, fiber.StatusBadRequest, false, richErr.Message)
	default:
		return err
	}
}

func (a *Controller) Me(c *fiber.Ctx) error {
	account, ok := userauth.AccountFromContext(c.UserContext())
	if !ok {
		return userauth.ErrUnauthorized
	}
	return c.JSON(account)
}

func (a *Controller) AdminList(c *fiber.Ctx) error {
	accounts, err := a.Service.Admin.List(c.UserContext(), c.QueryInt("skip", 0), c.QueryInt("limit", userauth.DefaultListLimit))
	if err != nil {
		return err
	}
	return c.JSON(accounts)
}

func (a *Controller) AdminGet(c *fiber.Ctx) error {
	account, err := a.Service.Admin.Get(c.UserContext(), c.Params("email"))
	if err != nil {
		return err
	}
	return c.JSON(account)
}

func (a *Controller) AdminDelete(c *fiber.Ctx) error {
	if err := a.Service.Admin.Delete(c.UserContext(), c.Params("email")); err != nil {
		return err
	}

	if a.Debug {
		admin, _ := jwtware.Principal(c, ContextKey)
		a.Logger.Debug("admin removed account", "target", c.Params("email"), "admin", print.MaybePrettyJSON(admin))
	}

	return c.JSON(MessageResponse{Message: "User deleted"})
}

func (a *Controller) renderResetResult(c *fiber.Ctx, status int, success bool, message string) error {
	title := "Password reset failed"
	if success {
		title = "Password updated"
	}
	return c.Status(status).Render(a.Views.PasswordResetResult, map[string]any{
		"title":       title,
		"message":     message,
		"success":     success,
		"login_url":   a.Routes.Users + "/login",
		"request_url": a.Routes.Users + "/password-reset",
	})
}

func (a *Controller) setCookie(c *fiber.Ctx, ck userauth.CookieSpec) {
	cookie := &fiber.Cookie{
		Name:     ck.Name,
		Value:    ck.Value,
		Path:     ck.Path,
		MaxAge:   int(ck.MaxAge / time.Second),
		HTTPOnly: ck.HTTPOnly,
		Secure:   ck.Secure && a.SecureCookies,
		SameSite: ck.SameSite,
	}
	if ck.MaxAge < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Now().Add(-24 * time.Hour)
	}
	c.Cookie(cookie)
}

func formBindings(c *fiber.Ctx, token, message string) map[string]any {
	bind := csrf.TemplateData(c)
	bind["token"] = token
	bind["error"] = message
	return bind
}

func wantsTokenBody(c *fiber.Ctx) bool {
	if c.Query("mode") == "api" {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}

func validationMessage(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return err.Error()
	}
	if len(richErr.ValidationErrors) == 0 {
		return richErr.Message
	}
	fe := richErr.ValidationErrors[0]
	return fe.Field + ": " + fe.Message
}
