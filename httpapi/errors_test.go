package httpapi_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/httpapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "fiber", err: fiber.ErrMethodNotAllowed, want: http.StatusMethodNotAllowed},
		{name: "sentinel code", err: userauth.ErrDuplicateEmail, want: http.StatusConflict},
		{name: "wrapped sentinel", err: fmt.Errorf("x: %w", userauth.ErrForbidden), want: http.StatusForbidden},
		{name: "category only", err: goerrors.New("gone", goerrors.CategoryNotFound), want: http.StatusNotFound},
		{name: "internal", err: goerrors.New("db down", goerrors.CategoryInternal), want: http.StatusInternalServerError},
		{
			name: "rich wrapping fiber",
			err:  goerrors.Wrap(fiber.ErrUnprocessableEntity, goerrors.CategoryBadInput, "bad body").WithCode(http.StatusBadRequest),
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpapi.StatusFor(tt.err))
		})
	}
}

func errorApp(debug bool, err error) *fiber.App {
	app := httpapi.NewApp(userauth.NopLogger(), debug)
	app.Get("/", func(c *fiber.Ctx) error {
		return err
	})
	return app
}

func TestErrorHandler_HidesInternalDetails(t *testing.T) {
	app := errorApp(false, errors.New("pq: connection refused"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "An unexpected server error occurred", body.Error.Message)
	assert.Empty(t, body.Error.Source)
	assert.Equal(t, string(goerrors.CategoryInternal), body.Error.Category)
}

func TestErrorHandler_DebugKeepsSource(t *testing.T) {
	app := errorApp(true, errors.New("pq: connection refused"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "pq: connection refused", body.Error.Source)
}

func TestErrorHandler_DoesNotMutateSentinels(t *testing.T) {
	app := errorApp(false, userauth.ErrUnauthorized)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get(fiber.HeaderWWWAuthenticate))
	resp.Body.Close()

	assert.Empty(t, userauth.ErrUnauthorized.RequestID)
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	app := httpapi.NewApp(userauth.NopLogger(), false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, http.StatusNotFound, body.Error.Code)
}
