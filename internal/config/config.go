// Package config reads service settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

type Config struct {
	DatabaseURL    string // empty selects the in-memory demo store
	ServerPort     string
	AllowedOrigins []string
	JWTSecret      string
	OpenAIKey      string
	OpenAIModel    string
	CatalogLocale  language.Tag
	ReportLocation *time.Location
	CartIdleTTL    time.Duration
	LogLevel       zapcore.Level
	SeedPassword   string
}

// Load reads .env (if any) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getenv("DATABASE_URL"),
		ServerPort:   orDefault(getenv("SERVER_PORT"), "8080"),
		JWTSecret:    getenv("JWT_SECRET"),
		OpenAIKey:    getenv("OPENAI_API_KEY"),
		OpenAIModel:  getenv("OPENAI_MODEL"),
		SeedPassword: orDefault(getenv("SEED_PASSWORD"), "demo1234"),
	}

	for _, o := range strings.Split(getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	tag, err := language.Parse(orDefault(getenv("CATALOG_LOCALE"), "es"))
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_LOCALE: %w", err)
	}
	cfg.CatalogLocale = tag

	loc, err := time.LoadLocation(orDefault(getenv("REPORT_TIMEZONE"), "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}
	cfg.ReportLocation = loc

	ttl, err := time.ParseDuration(orDefault(getenv("CART_IDLE_TTL"), "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CART_IDLE_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("CART_IDLE_TTL must be positive, got %s", ttl)
	}
	cfg.CartIdleTTL = ttl

	level, err := zapcore.ParseLevel(orDefault(getenv("LOG_LEVEL"), "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// NewLogger returns a production JSON logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	return zc.Build()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
