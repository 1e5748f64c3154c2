package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"catalogweb/internal/catalogapi"
	"catalogweb/internal/config"
	"catalogweb/internal/http/handlers"
	"catalogweb/internal/listview"
	applog "catalogweb/internal/log"
	"catalogweb/internal/metrics"
	"catalogweb/internal/services"
)

func main() {
	cfg := config.Load()

	closeLog, err := applog.Setup(cfg.LogEnv, cfg.LogFile)
	if err != nil {
		log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	catalog := catalogapi.New(cfg.APIBaseURL,
		catalogapi.WithTimeout(cfg.APITimeout),
		catalogapi.WithRate(cfg.APIRate),
	)
	views := listview.NewRegistry(catalog, cfg.ViewTTL, listview.Options{
		Delay:        cfg.DebounceDelay,
		FetchTimeout: cfg.APITimeout,
		StorageBase:  cfg.StorageBaseURL,
		Metrics:      m,
	})
	go views.Run(ctx, time.Minute)

	gate := services.NewAdminGate(cfg.AdminPasswordHash, 8*time.Hour)

	// Templates & app
	engine := html.New(cfg.TemplatesDir, ".html")
	engine.Reload(cfg.LogEnv != "production")

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: handlers.ErrorHandler(func(c *fiber.Ctx, err error) {
			applog.Error(c, "server.error", err, nil)
		}),
		// product images are posted through the admin form
		BodyLimit: 16 << 20,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := string(c.Request().URI().Path())
			// the list script long-polls and posts on every keystroke
			return strings.HasPrefix(p, "/static/") || strings.HasPrefix(p, "/views/")
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"path": c.Path()})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// ---------- Static assets ----------
	log.Printf("[static] /static -> %s", cfg.StaticDir)
	app.Static("/static", cfg.StaticDir)
	app.Get("/metrics", metrics.Handler(reg))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "views": views.Len()})
	})

	// ---------- App handlers ----------
	handlers.Register(app, handlers.NewDeps(cfg, catalog, views, gate))

	// 404
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "Page not found"})
	})

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
	views.CloseAll()
}
