package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/routing"
	"github.com/NeuralTrust/EdgeRouter/pkg/middleware"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *routing.Table {
	t.Helper()
	table, err := routing.NewTable([]routing.Rule{
		{Name: "api", Prefix: "/api", Upstream: routing.UpstreamAPI, StripPrefix: true},
		{Name: "frontend", Prefix: "/", Upstream: routing.UpstreamFrontend},
	})
	require.NoError(t, err)
	return table
}

func newLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logger, hook
}

// echoHandler reports the forward path and request id it saw.
func echoHandler(c *fiber.Ctx) error {
	c.Set("X-Seen-Forward-Path", utils.ForwardPath(c))
	c.Set("X-Seen-Request-ID", utils.RequestID(c))
	return c.SendString("ok")
}

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	for _, h := range handlers {
		app.Use(h)
	}
	app.All("/*", echoHandler)
	return app
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIsSensitivePath(t *testing.T) {
	tests := []struct {
		path      string
		sensitive bool
	}{
		{"/", false},
		{"/api/sessions/42", false},
		{"/assets/app.js", false},
		{"/.env", true},
		{"/.ENV", true},
		{"/app/.env", true},
		{"/backup.env", true},
		{"/.git", true},
		{"/.git/config", true},
		{"/repo.git/", true},
		{"/.aws/credentials", true},
		{"/static/.hidden/file", true},
		{"/.well-known/security.txt", true},
		{"/.well-known/acme-challenge/abc_DEF-123", false},
		{"/.well-known/acme-challenge/.secret", true},
		{"/environment", false},
		{"/gitlab", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.sensitive, middleware.IsSensitivePath(tt.path))
		})
	}
}

func TestSensitivePathMiddleware(t *testing.T) {
	logger, hook := newLogger()
	app := newApp(
		middleware.NewSensitivePathMiddleware().Middleware(),
		middleware.NewRequestIDMiddleware().Middleware(),
		middleware.NewAccessLogMiddleware(logger).Middleware(),
	)

	for _, path := range []string{"/.env", "/.git/config", "/%2eenv", "/foo/%2Egit"} {
		t.Run(path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Empty(t, body(t, resp))
			assert.Empty(t, resp.Header.Get("X-Request-ID"))
		})
	}
	assert.Empty(t, hook.AllEntries())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/.well-known/acme-challenge/token", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, hook.AllEntries(), 1)
}

func TestRequestIDMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.NewRequestIDMiddleware().Middleware())
	app.Get("/*", func(c *fiber.Ctx) error {
		c.Set("X-Seen-Request-ID", utils.RequestID(c))
		// an upstream echoing a different id must not win
		c.Set("X-Request-ID", "from-upstream")
		return c.SendString("ok")
	})

	t.Run("passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
		assert.Equal(t, "abc-123", resp.Header.Get("X-Seen-Request-ID"))
	})

	t.Run("generates", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
		require.NoError(t, err)
		id := resp.Header.Get("X-Request-ID")
		_, err = uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, resp.Header.Get("X-Seen-Request-ID"))
	})

	t.Run("unique", func(t *testing.T) {
		first, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
		require.NoError(t, err)
		second, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
		require.NoError(t, err)
		assert.NotEqual(t, first.Header.Get("X-Request-ID"), second.Header.Get("X-Request-ID"))
	})
}

func TestRouteMiddleware(t *testing.T) {
	logger, _ := newLogger()
	app := newApp(middleware.NewRouteMiddleware(logger, testTable(t)).Middleware())

	tests := []struct {
		path    string
		forward string
	}{
		{"/api/sessions/42", "/sessions/42"},
		{"/api", "/"},
		{"/apiary", "/apiary"},
		{"/dashboard", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.forward, resp.Header.Get("X-Seen-Forward-Path"))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	logger, _ := newLogger()
	cors := middleware.NewCORSMiddleware(middleware.CORSOptions{
		AllowOrigins:     []string{"https://app.example.com", "https://admin.example.com"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	app := newApp(
		middleware.NewRouteMiddleware(logger, testTable(t)).Middleware(),
		cors.Middleware(),
	)

	t.Run("preflight on api", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, body(t, resp))
		assert.Equal(t, "https://admin.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Authorization, Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "600", resp.Header.Get("Access-Control-Max-Age"))
		assert.Empty(t, resp.Header.Get("X-Seen-Forward-Path"))
	})

	t.Run("unknown origin gets first configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
	})

	t.Run("frontend is not scoped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/dashboard", nil)
		req.Header.Set("Origin", "https://app.example.com")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "/dashboard", resp.Header.Get("X-Seen-Forward-Path"))
	})
}

func TestSecurityMiddleware(t *testing.T) {
	app := newApp(middleware.NewSecurityMiddleware(31536000, "DENY").Middleware())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "max-age=31536000; includeSubDomains", resp.Header.Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	app = newApp(middleware.NewSecurityMiddleware(0, "").Middleware())
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))
	assert.Empty(t, resp.Header.Get("X-Frame-Options"))
}

func TestPanicRecoverMiddleware(t *testing.T) {
	logger, hook := newLogger()
	app := fiber.New()
	app.Use(middleware.NewPanicRecoverMiddleware(logger).Middleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("kaboom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Internal server error"}`, body(t, resp))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestAccessLogMiddleware(t *testing.T) {
	logger, hook := newLogger()
	app := newApp(
		middleware.NewRequestIDMiddleware().Middleware(),
		middleware.NewAccessLogMiddleware(logger).Middleware(),
		middleware.NewRouteMiddleware(logger, testTable(t)).Middleware(),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/42", nil)
	req.Header.Set("X-Request-ID", "log-me")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	_, err := app.Test(req)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request completed", entry.Message)
	assert.Equal(t, "log-me", entry.Data["request_id"])
	assert.Equal(t, "api", entry.Data["route"])
	assert.Equal(t, "api", entry.Data["upstream"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, "/api/sessions/42", entry.Data["path"])
	assert.Equal(t, "Computer", entry.Data["device"])
}

func TestMetricsMiddleware(t *testing.T) {
	logger, _ := newLogger()
	app := newApp(
		middleware.NewMetricsMiddleware().Middleware(),
		middleware.NewRouteMiddleware(logger, testTable(t)).Middleware(),
	)

	before := requestCount(t, "api", "DELETE", "2xx")
	_, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/sessions/1", nil))
	require.NoError(t, err)
	assert.Equal(t, before+1, requestCount(t, "api", "DELETE", "2xx"))
}

func TestMetricsMiddleware_FoldsUnknownMethods(t *testing.T) {
	logger, _ := newLogger()
	app := fiber.New(fiber.Config{RequestMethods: append(append([]string{}, fiber.DefaultMethods...), "PURGE")})
	app.Use(middleware.NewMetricsMiddleware().Middleware())
	app.Use(middleware.NewRouteMiddleware(logger, testTable(t)).Middleware())
	app.Use(func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	before := requestCount(t, "api", "OTHER", "2xx")
	_, err := app.Test(httptest.NewRequest("PURGE", "/api/cache", nil))
	require.NoError(t, err)
	assert.Equal(t, before+1, requestCount(t, "api", "OTHER", "2xx"))
	assert.Zero(t, requestCount(t, "api", "PURGE", "2xx"))
}
