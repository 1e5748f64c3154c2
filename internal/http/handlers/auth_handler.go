package handlers

import (
	"time"

	"catalogweb/internal/log"
	"catalogweb/internal/services"
	"catalogweb/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie carries the admin session id.
const SessionCookie = "admin_sid"

type AuthHandler struct {
	Gate *services.AdminGate
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	if !h.Gate.Enabled() {
		return c.Redirect("/admin")
	}
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if !h.Gate.Enabled() {
		return c.Redirect("/admin")
	}
	pass := c.FormValue("password")
	if !validate.Password(pass) {
		log.Security(c, "auth.login.fail", map[string]any{"reason": "bad_password_format"})
		c.Status(fiber.StatusUnauthorized)
		return render(c, "login", fiber.Map{"Err": "Invalid password"})
	}
	sid, err := h.Gate.Login(pass)
	if err != nil {
		log.Security(c, "auth.login.fail", nil)
		c.Status(fiber.StatusUnauthorized)
		return render(c, "login", fiber.Map{"Err": "Invalid password"})
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false,
	})
	log.Audit(c, "auth.login.success", nil)
	return c.Redirect("/admin")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.Gate.Logout(c.Cookies(SessionCookie))
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/")
}
