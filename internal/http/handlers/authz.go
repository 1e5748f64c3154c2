package handlers

import (
	applog "catalogweb/internal/log"
	"catalogweb/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RequireAdmin lets a request through when the gate is open or the session is
// valid; otherwise the browser is sent to the login page.
func RequireAdmin(gate *services.AdminGate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(SessionCookie)
		if !gate.Valid(sid) {
			if sid != "" {
				applog.Security(c, "access.denied.admin", nil)
			}
			return c.Redirect("/login")
		}
		c.Locals("admin", true)
		return c.Next()
	}
}

// MarkAdmin exposes the admin flag to every template without enforcing it.
func MarkAdmin(gate *services.AdminGate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if gate.Enabled() && gate.Valid(c.Cookies(SessionCookie)) {
			c.Locals("admin", true)
		}
		return c.Next()
	}
}
