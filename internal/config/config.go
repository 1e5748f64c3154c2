package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the catalog web client configuration.
type Config struct {
	Port              string
	APIBaseURL        string
	StorageBaseURL    string
	TemplatesDir      string
	StaticDir         string
	LogFile           string
	LogEnv            string
	APITimeout        time.Duration
	APIRate           float64
	DebounceDelay     time.Duration
	ViewTTL           time.Duration
	AdminPasswordHash string
}

// ServiceConfig configures catalogd, the development catalog service.
type ServiceConfig struct {
	Port      string
	DBDSN     string
	MediaDir  string
	PageSize  int
	RedisAddr string
	CacheTTL  time.Duration
	LogFile   string
	LogEnv    string
}

func loadDotEnv() {
	// a missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env ignored: %v", err)
	}
}

func Load() Config {
	loadDotEnv()
	cfg := Config{
		Port:              env("PORT", "8081"),
		APIBaseURL:        env("API_BASE_URL", "http://localhost:8000/api"),
		StorageBaseURL:    env("STORAGE_BASE_URL", "http://localhost:8000/storage/"),
		TemplatesDir:      env("TEMPLATES_DIR", "./web/templates"),
		StaticDir:         env("STATIC_DIR", "./web/static"),
		LogFile:           os.Getenv("LOG_FILE"),
		LogEnv:            env("LOG_ENV", "development"),
		APITimeout:        duration("API_TIMEOUT", 10*time.Second),
		APIRate:           float("API_RATE", 20),
		DebounceDelay:     duration("DEBOUNCE_DELAY", 300*time.Millisecond),
		ViewTTL:           duration("VIEW_TTL", 10*time.Minute),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}
	log.Printf("[config] PORT=%s API_BASE_URL=%s STORAGE_BASE_URL=%s DEBOUNCE_DELAY=%s VIEW_TTL=%s ADMIN_GATE=%t",
		cfg.Port, cfg.APIBaseURL, cfg.StorageBaseURL, cfg.DebounceDelay, cfg.ViewTTL, cfg.AdminPasswordHash != "")
	return cfg
}

func LoadService() ServiceConfig {
	loadDotEnv()
	cfg := ServiceConfig{
		Port:      env("CATALOGD_PORT", "8000"),
		DBDSN:     env("DB_DSN", "catalog.db"),
		MediaDir:  env("MEDIA_DIR", "./storage"),
		PageSize:  integer("PAGE_SIZE", 10),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		CacheTTL:  duration("CACHE_TTL", 10*time.Minute),
		LogFile:   os.Getenv("LOG_FILE"),
		LogEnv:    env("LOG_ENV", "development"),
	}
	log.Printf("[config] CATALOGD_PORT=%s DB_DSN=%s MEDIA_DIR=%s PAGE_SIZE=%d REDIS_ADDR=%s",
		cfg.Port, cfg.DBDSN, cfg.MediaDir, cfg.PageSize, cfg.RedisAddr)
	return cfg
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("[warn] %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}

func integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[warn] %s=%q is not a positive integer, using %d", key, v, def)
		return def
	}
	return n
}

func float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[warn] %s=%q is not a positive number, using %g", key, v, def)
		return def
	}
	return f
}
