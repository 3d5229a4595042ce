package forwarding_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/forwarding"
	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCtx(t *testing.T) {
	var got forwarding.Forwarded
	app := fiber.New()
	app.Get("/*", func(c *fiber.Ctx) error {
		got = forwarding.FromCtx(c, "https", 443)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Host = "app.example.com"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Forwarded-Proto", "http")
	req.Header.Set("X-Request-ID", "rid-1")
	_, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", got.RealIP)
	assert.Equal(t, "203.0.113.9, 0.0.0.0", got.For)
	assert.Equal(t, "https", got.Proto)
	assert.Equal(t, "app.example.com", got.Host)
	assert.Equal(t, "443", got.Port)
	assert.Equal(t, "rid-1", got.RequestID)

	seen := map[string]string{}
	got.Visit(func(k, v string) { seen[k] = v })
	assert.Len(t, seen, 6)
	assert.Equal(t, "https", seen[common.HeaderForwardedProto])
}

func TestSkipHeaders(t *testing.T) {
	for _, h := range []string{"Host", "content-length", "Connection", "Upgrade", "Transfer-Encoding", "X-Forwarded-For", "X-Request-Id"} {
		assert.True(t, forwarding.SkipRequestHeader(h), h)
	}
	for _, h := range []string{"Authorization", "Cookie", "Content-Type", "X-Version"} {
		assert.False(t, forwarding.SkipRequestHeader(h), h)
	}
	assert.True(t, forwarding.SkipResponseHeader("Keep-Alive"))
	assert.True(t, forwarding.SkipResponseHeader("Content-Length"))
	assert.False(t, forwarding.SkipResponseHeader("Set-Cookie"))
}
