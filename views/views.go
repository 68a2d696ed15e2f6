// Package views embeds the HTML pages and email bodies rendered with the
// django template engine.
package views

import (
	"embed"
	"net/http"

	"github.com/gofiber/template/django/v3"
)

//go:embed *.html emails/*.html
var FS embed.FS

// Template names as passed to Render
const (
	PasswordResetForm   = "password_reset"
	PasswordResetResult = "password_reset_result"
	VerifyEmail         = "emails/verify_email"
	PasswordResetEmail  = "emails/password_reset"
)

// NewEngine returns a django engine reading the embedded templates.
func NewEngine() *django.Engine {
	return django.NewFileSystem(http.FS(FS), ".html")
}
