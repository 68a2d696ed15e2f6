package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/views"
)

// NewApp returns a fiber app set up with the page templates, the JSON
// error handler and the recover and request id middleware.
func NewApp(logger userauth.Logger, debug bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go-userauth",
		Views:                 views.NewEngine(),
		ErrorHandler:          ErrorHandler(logger, debug),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: debug}))
	app.Use(requestid.New())

	return app
}
