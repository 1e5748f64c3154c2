package handlers

import "github.com/gofiber/fiber/v2"

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if a := c.Locals("admin"); a != nil {
		data["Admin"] = a
	}
	if tok := csrfToken(c); tok != "" {
		data["CSRFToken"] = tok
	}
	return c.Render(tmpl, data)
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": msg})
}

// ErrorHandler logs err and renders a friendly page without internals.
func ErrorHandler(logErr func(c *fiber.Ctx, err error)) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Something went wrong. Please try again."
		if fe, ok := err.(*fiber.Error); ok && fe.Code < 500 {
			code = fe.Code
			msg = fe.Message
		}
		logErr(c, err)
		if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
			return c.Status(code).SendString(msg)
		}
		return nil
	}
}

// csrfToken is the token the CSRF middleware put into Locals, falling back to
// the cookie when Locals wasn't populated.
func csrfToken(c *fiber.Ctx) string {
	if tok, _ := c.Locals("CSRFToken").(string); tok != "" {
		return tok
	}
	return c.Cookies("csrf_")
}
