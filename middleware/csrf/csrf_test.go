package csrf

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSecureKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return c.Status(richErr.Code).SendString(richErr.TextCode)
			}
			return c.Status(http.StatusInternalServerError).SendString(err.Error())
		},
	})

	handler := func(c *fiber.Ctx) error {
		return c.SendString(Token(c))
	}

	app.Get("/form/:id", New(cfg), handler)
	app.Post("/form/:id", New(cfg), handler)
	return app
}

func fetchToken(t *testing.T, app *fiber.App, path string) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, body)
	return string(body)
}

func postForm(t *testing.T, app *fiber.App, path string, values url.Values) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestStatelessTokenValidationSuccess(t *testing.T) {
	app := newTestApp(Config{SecureKey: newTestSecureKey()})

	token := fetchToken(t, app, "/form/1")

	status, _ := postForm(t, app, "/form/1", url.Values{DefaultFormFieldName: {token}})
	assert.Equal(t, http.StatusOK, status)
}

func TestStatelessTokenFromHeader(t *testing.T) {
	app := newTestApp(Config{SecureKey: newTestSecureKey()})
	token := fetchToken(t, app, "/form/1")

	req := httptest.NewRequest(http.MethodPost, "/form/1", nil)
	req.Header.Set(DefaultHeaderName, token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatelessTokenErrors(t *testing.T) {
	clk := &clock{now: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	bindToPath := func(c *fiber.Ctx) string { return c.Params("id") }
	app := newTestApp(Config{SecureKey: newTestSecureKey(), KeyFunc: bindToPath, Now: clk.Now})

	token := fetchToken(t, app, "/form/1")

	t.Run("missing", func(t *testing.T) {
		status, body := postForm(t, app, "/form/1", url.Values{})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "CSRF_TOKEN_MISSING", body)
	})

	t.Run("garbage", func(t *testing.T) {
		status, body := postForm(t, app, "/form/1", url.Values{DefaultFormFieldName: {"not-a-token"}})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "CSRF_TOKEN_MISMATCH", body)
	})

	t.Run("bound to another key", func(t *testing.T) {
		status, _ := postForm(t, app, "/form/2", url.Values{DefaultFormFieldName: {token}})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("signed with another key", func(t *testing.T) {
		other := newTestApp(Config{SecureKey: []byte("fedcba9876543210fedcba9876543210"), KeyFunc: bindToPath, Now: clk.Now})
		status, _ := postForm(t, other, "/form/1", url.Values{DefaultFormFieldName: {token}})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("expired", func(t *testing.T) {
		clk.Advance(time.Hour)
		status, body := postForm(t, app, "/form/1", url.Values{DefaultFormFieldName: {token}})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "CSRF_TOKEN_EXPIRED", body)
	})
}

func TestSkip(t *testing.T) {
	app := newTestApp(Config{
		SecureKey: newTestSecureKey(),
		Skip: func(c *fiber.Ctx) bool {
			return c.Is("json")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/form/1", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type memoryStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStorage) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStorage) Set(key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestStorageTokensRotateAfterUse(t *testing.T) {
	storage := &memoryStorage{data: map[string]string{}}
	app := newTestApp(Config{Storage: storage})

	first := fetchToken(t, app, "/form/1")
	assert.Equal(t, first, fetchToken(t, app, "/form/1"), "token is reused until consumed")

	status, _ := postForm(t, app, "/form/1", url.Values{DefaultFormFieldName: {"wrong"}})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = postForm(t, app, "/form/1", url.Values{DefaultFormFieldName: {first}})
	assert.Equal(t, http.StatusOK, status)

	assert.NotEqual(t, first, fetchToken(t, app, "/form/1"))
}

func TestTemplateData(t *testing.T) {
	app := fiber.New()
	app.Get("/", New(Config{SecureKey: newTestSecureKey()}), func(c *fiber.Ctx) error {
		return c.JSON(TemplateData(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"csrf_field_name":"_token"`)
	assert.Contains(t, string(body), `name=\"_token\"`)
}

func TestShortSecureKeyPanics(t *testing.T) {
	assert.Panics(t, func() {
		New(Config{SecureKey: []byte("short")})
	})
}
