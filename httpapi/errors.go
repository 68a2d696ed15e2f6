package httpapi

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	userauth "github.com/goliatone/go-userauth"
)

var categoryStatus = map[goerrors.Category]int{
	goerrors.CategoryValidation: http.StatusBadRequest,
	goerrors.CategoryBadInput:   http.StatusBadRequest,
	goerrors.CategoryAuth:       http.StatusUnauthorized,
	goerrors.CategoryAuthz:      http.StatusForbidden,
	goerrors.CategoryNotFound:   http.StatusNotFound,
	goerrors.CategoryConflict:   http.StatusConflict,
	goerrors.CategoryRateLimit:  http.StatusTooManyRequests,
	goerrors.CategoryOperation:  http.StatusRequestTimeout,
}

// StatusFor returns the HTTP status for err
func StatusFor(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			return richErr.Code
		}
		if status, ok := categoryStatus[richErr.Category]; ok {
			return status
		}
		return http.StatusInternalServerError
	}

	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every error as a go-errors JSON response. Internal
// failures are reported with a generic message unless debug is set.
func ErrorHandler(logger userauth.Logger, debug bool) fiber.ErrorHandler {
	if logger == nil {
		logger = userauth.NopLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)

		var richErr *goerrors.Error
		switch {
		case goerrors.As(err, &richErr):
			// sentinels are shared, never mutate them
			richErr = richErr.Clone()
		default:
			var fiberErr *fiber.Error
			message := "An unexpected server error occurred"
			if goerrors.As(err, &fiberErr) {
				message = fiberErr.Message
			}
			richErr = goerrors.New(message, categoryFor(status)).WithCode(status)
			if debug {
				richErr.Source = err
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"path", c.Path(),
				"status", status,
				"error", err,
			)
			if !debug {
				richErr.Source = nil
				richErr.Metadata = nil
			}
		} else {
			logger.Debug("request rejected",
				"path", c.Path(),
				"status", status,
				"text_code", richErr.TextCode,
			)
		}

		if debug {
			logger.Debug("error details", "error", print.MaybePrettyJSON(richErr))
		} else {
			richErr.Location = nil
			richErr.StackTrace = nil
		}

		if richErr.Code == 0 {
			richErr.Code = status
		}
		richErr.RequestID, _ = c.Locals("requestid").(string)

		if status == http.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}

		return c.Status(status).JSON(richErr.ToErrorResponse(false, nil))
	}
}

func categoryFor(status int) goerrors.Category {
	switch {
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status < http.StatusInternalServerError:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryInternal
	}
}
