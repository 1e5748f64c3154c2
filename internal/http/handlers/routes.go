package handlers

import (
	"time"

	applog "catalogweb/internal/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Register mounts the web client pages and the list view endpoints on app.
func Register(app fiber.Router, d *Deps) {
	app.Use(MarkAdmin(d.Gate))

	// Product list
	app.Get("/", d.ListHandler.Page)
	views := app.Group("/views/:id")
	views.Get("/", d.ListHandler.Snapshot)
	views.Post("/filter", d.ListHandler.Filter)
	views.Post("/categories/toggle", d.ListHandler.ToggleCategory)
	views.Post("/page", d.ListHandler.Paginate)
	views.Post("/dropdown", d.ListHandler.Dropdown)
	views.Post("/interact", d.ListHandler.Interact)
	views.Post("/products/:pid/delete", d.ListHandler.Delete)
	views.Post("/close", d.ListHandler.Close)

	// Product pages
	app.Get("/product", func(c *fiber.Ctx) error {
		return notFound(c, "This item is no longer available")
	})
	app.Get("/product/:id", d.ProductHandler.Detail)
	app.Post("/product/:id/delete", d.ProductHandler.Delete)

	// Auth routes (login throttled)
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			c.Status(fiber.StatusTooManyRequests)
			return render(c, "login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	// Admin
	admin := app.Group("/admin", RequireAdmin(d.Gate))
	admin.Get("/", d.AdminHandler.Dashboard)
	admin.Get("/products/create", d.AdminHandler.ProductForm)
	admin.Post("/products/create", d.AdminHandler.CreateProduct)
	admin.Get("/categories/create", d.AdminHandler.CategoryForm)
	admin.Post("/categories/create", d.AdminHandler.CreateCategory)
}
