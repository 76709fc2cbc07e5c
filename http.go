package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const identityLocalsKey = "console_identity"

// RouteGuard adapts the Guard to fiber. Each request is its own check, so
// there is nothing to supersede here; the middleware resolves the guard
// before any handler runs, which is what keeps protected content from ever
// flashing for an unauthenticated viewer.
type RouteGuard struct {
	guard          *Guard
	logger         Logger
	returnToCookie string
	cookieTTL      time.Duration
}

type RouteGuardOption func(*RouteGuard)

func RouteGuardWithLogger(logger Logger) RouteGuardOption {
	return func(rg *RouteGuard) {
		if logger != nil {
			rg.logger = logger
		}
	}
}

// RouteGuardWithReturnToCookie overrides the cookie preserving the
// originally requested location across a login round trip.
func RouteGuardWithReturnToCookie(name string) RouteGuardOption {
	return func(rg *RouteGuard) {
		if name != "" {
			rg.returnToCookie = name
		}
	}
}

func NewRouteGuard(guard *Guard, opts ...RouteGuardOption) *RouteGuard {
	rg := &RouteGuard{
		guard:          guard,
		logger:         defLogger{},
		returnToCookie: "return_to",
		cookieTTL:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(rg)
	}
	return rg
}

// Middleware gates every navigation. Screens behind it may assume access
// was already authorized; none of them re-checks the session.
func (rg *RouteGuard) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := rg.guard.Evaluate(c.UserContext(), c.Path())

		switch decision.State {
		case StateAuthenticated:
			if decision.RedirectTo != "" {
				// public-only target while logged in
				return c.Redirect(decision.RedirectTo, fiber.StatusFound)
			}
			if decision.Session.Identity != nil {
				identity := *decision.Session.Identity
				c.Locals(identityLocalsKey, identity)
				c.SetUserContext(WithIdentity(c.UserContext(), identity))
			}
			return c.Next()

		default:
			if decision.RedirectTo == "" {
				return c.Next()
			}
			rg.setReturnTo(c)
			rg.logger.Info("redirecting %s to %s", c.OriginalURL(), decision.RedirectTo)

			status := http.StatusSeeOther
			if c.Method() == fiber.MethodGet {
				status = http.StatusFound
			}
			return c.Redirect(decision.RedirectTo, status)
		}
	}
}

// CurrentIdentity returns the identity the guard resolved for this request.
func CurrentIdentity(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(identityLocalsKey).(Identity)
	return identity, ok
}

// ConsumeReturnTo pops the preserved location, falling back to def. Login
// uses it to resume the navigation that originally hit the guard.
func (rg *RouteGuard) ConsumeReturnTo(c *fiber.Ctx, def string) string {
	target := c.Cookies(rg.returnToCookie)
	if target == "" {
		return def
	}
	expireCookie(c, rg.returnToCookie)
	return target
}

func (rg *RouteGuard) setReturnTo(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     rg.returnToCookie,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(rg.cookieTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
