// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// --- HTTP ---
	Port               string   `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	RateLimitRPS       float64  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// --- Database ---
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Sessions ---
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	// --- Background work ---
	RiverMaxWorkers   int    `envconfig:"RIVER_MAX_WORKERS" default:"10"`
	ReconcileSchedule string `envconfig:"RECONCILE_SCHEDULE" default:"@every 15m"`

	// --- Threat intel; empty domain runs offline ---
	IntelDomain    string `envconfig:"INTEL_DOMAIN"`
	IntelToken     string `envconfig:"INTEL_TOKEN"`
	IntelCacheSize int    `envconfig:"INTEL_CACHE_SIZE" default:"10000"`

	// --- Embeddings; empty key disables similarity search ---
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	SimilarLimit  int    `envconfig:"SIMILAR_LIMIT" default:"3"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env when present, then the environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be > 0"))
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, errors.New("invalid DB_MIN_CONNS/DB_MAX_CONNS"))
	}
	if c.RiverMaxWorkers <= 0 {
		errs = append(errs, errors.New("RIVER_MAX_WORKERS must be > 0"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0"))
	}
	if c.SimilarLimit <= 0 {
		errs = append(errs, errors.New("SIMILAR_LIMIT must be > 0"))
	}
	if (c.IntelDomain == "") != (c.IntelToken == "") {
		errs = append(errs, errors.New("INTEL_DOMAIN and INTEL_TOKEN must be set together"))
	}
	if _, err := cron.ParseStandard(c.ReconcileSchedule); err != nil {
		errs = append(errs, fmt.Errorf("RECONCILE_SCHEDULE: %w", err))
	}
	for i, origin := range c.CORSAllowedOrigins {
		c.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
	}
	return errors.Join(errs...)
}

// IntelEnabled reports whether the threat intel services are configured.
func (c *Config) IntelEnabled() bool { return c.IntelDomain != "" }

func (c *Config) EmbeddingsEnabled() bool { return c.OpenAIAPIKey != "" }

func (c *Config) Addr() string { return ":" + c.Port }
