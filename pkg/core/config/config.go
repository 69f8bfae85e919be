// Package config loads server settings from the environment and the
// valuation model defaults from a YAML or TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"equity_valuation/pkg/core/auth"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/utils"
)

const devJWTSecret = "dev-only-insecure-jwt-secret-change-me"

// Config holds every runtime setting.
type Config struct {
	Port        string `validate:"required,numeric"`
	AppEnv      string `validate:"oneof=dev test prod"`
	DatabaseURL string

	JWTSecret       string        `validate:"required,min=16"`
	AccessTokenTTL  time.Duration `validate:"gt=0"`
	RefreshTokenTTL time.Duration `validate:"gtfield=AccessTokenTTL"`
	TurnstileSecret string

	CORSOrigins    []string `validate:"dive,required"`
	RateLimitRPS   float64  `validate:"gt=0"`
	RateLimitBurst int      `validate:"gte=1"`
	MaxUploadBytes int64    `validate:"gt=0"`

	MarketDataURL    string `validate:"omitempty,url"`
	MarketDataAPIKey string
	MarketDataRPS    int `validate:"gte=1"`

	LogLevel          string `validate:"oneof=trace debug info warn error"`
	LogFormat         string `validate:"oneof=console json"`
	ModelDefaultsFile string

	Model calc.Defaults `validate:"-"`
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool { return c.AppEnv == "dev" }

// Load reads .env (current or parent directory), then the environment, then
// the model defaults file, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if err = godotenv.Load("../.env"); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("[CONFIG] error loading .env, relying on environment")
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      strings.ToLower(getEnv("APP_ENV", "dev")),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", auth.DefaultAccessTTL),
		RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", auth.DefaultRefreshTTL),
		TurnstileSecret: getEnv("TURNSTILE_SECRET", ""),

		CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),

		MarketDataURL:    getEnv("MARKET_DATA_URL", ""),
		MarketDataAPIKey: getEnv("MARKET_DATA_API_KEY", ""),
		MarketDataRPS:    getEnvAsInt("MARKET_DATA_RPS", 10),

		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "console")),
		ModelDefaultsFile: getEnv("MODEL_DEFAULTS_FILE", "config/valuation.yaml"),
	}

	if cfg.JWTSecret == "" && cfg.AppEnv == "dev" {
		log.Warn().Msg("[CONFIG] JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = devJWTSecret
	}

	model, err := LoadModelDefaults(cfg.ModelDefaultsFile)
	if err != nil {
		return nil, err
	}
	cfg.Model = model

	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SetupLogging configures the package-level phuslu logger.
func (c *Config) SetupLogging() {
	logger := log.Logger{Level: log.ParseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		logger.Writer = &log.IOWriter{Writer: os.Stdout}
	} else {
		logger.TimeFormat = "15:04:05"
		logger.Writer = &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true}
	}
	log.DefaultLogger = logger
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	log.Warn().Str("key", key).Str("value", s).Int("default", fallback).Msg("[CONFIG] invalid integer, using default")
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	log.Warn().Str("key", key).Str("value", s).Float64("default", fallback).Msg("[CONFIG] invalid number, using default")
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	log.Warn().Str("key", key).Str("value", s).Dur("default", fallback).Msg("[CONFIG] invalid duration, using default")
	return fallback
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
