package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const noticeCookie = "console_notice"

// SetNotice stores a one shot notice shown on the next rendered page.
func SetNotice(c *fiber.Ctx, message string) {
	c.Cookie(&fiber.Cookie{
		Name:     noticeCookie,
		Value:    message,
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ConsumeNotice pops the pending notice, if any. The cookie is
// expired so the notice renders exactly once.
func ConsumeNotice(c *fiber.Ctx) string {
	message := c.Cookies(noticeCookie, "")
	if message == "" {
		return ""
	}

	expireCookie(c, noticeCookie)

	return message
}
