package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/hsmss/go-console-auth"
)

func TestNoticeRoundTrip(t *testing.T) {
	app := fiber.New()

	app.Get("/set", func(c *fiber.Ctx) error {
		auth.SetNotice(c, "Signed in")
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/read", func(c *fiber.Ctx) error {
		return c.SendString(auth.ConsumeNotice(c))
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/set", nil))
	require.NoError(t, err)

	cookie := readCookie(t, res, "console_notice")
	require.NotNil(t, cookie)
	assert.Equal(t, "Signed in", cookie.Value)

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.AddCookie(&http.Cookie{Name: "console_notice", Value: "Signed in"})
	res, err = app.Test(req)
	require.NoError(t, err)

	body := make([]byte, 64)
	n, _ := res.Body.Read(body)
	assert.Equal(t, "Signed in", string(body[:n]))

	// consuming expires the cookie so the notice shows once
	expired := readCookie(t, res, "console_notice")
	require.NotNil(t, expired)
	assert.Empty(t, expired.Value)

	// a request without the cookie reads nothing
	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/read", nil))
	require.NoError(t, err)
	n, _ = res.Body.Read(body)
	assert.Empty(t, string(body[:n]))
}
