package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"

	"catalogweb/internal/cache"
	"catalogweb/internal/config"
	"catalogweb/internal/http/api"
	applog "catalogweb/internal/log"
	"catalogweb/internal/metrics"
	"catalogweb/internal/repos"
	"catalogweb/internal/services"
)

func main() {
	cfg := config.LoadService()

	closeLog, err := applog.Setup(cfg.LogEnv, cfg.LogFile)
	if err != nil {
		log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := services.NewCatalogService(repos.NewCategoryRepo(db), repos.NewProductRepo(db), cfg.PageSize)
	svc.Metrics = m
	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lc, err := cache.Dial(dialCtx, cfg.RedisAddr, cfg.CacheTTL)
		cancel()
		if err != nil {
			log.Printf("[warn] list cache disabled: %v", err)
		} else {
			defer lc.Close()
			svc.Cache = lc
		}
	}

	mediaDir := cfg.MediaDir
	if !filepath.IsAbs(mediaDir) {
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
	}
	log.Printf("[static] /storage -> %s", mediaDir)

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    16 << 20,
	})
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(m.Requests())

	api.Register(app, &api.Handler{Catalog: svc, MediaDir: mediaDir})
	app.Get("/metrics", metrics.Handler(reg))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
