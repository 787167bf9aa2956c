package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Portal  PortalConfig
	Mail    MailConfig
	Billing BillingConfig
	Geocode GeocodeConfig
	Limits  LimitsConfig
}

type ServerConfig struct {
	Port    string
	Env     string
	BaseURL string
}

type SessionConfig struct {
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// PortalConfig configures the customer-portal bearer tokens.
type PortalConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type MailConfig struct {
	APIKey   string
	From     string
	FromName string
}

type BillingConfig struct {
	StripeKey     string
	WebhookSecret string
	PriceID       string
}

type GeocodeConfig struct {
	BaseURL string
	Email   string // contact address sent with requests, per usage policy
}

type LimitsConfig struct {
	Window     time.Duration
	AuthBudget int
	GlobalRPS  int
}

// Load reads configuration from environment variables, loading .env first
// if one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:    getEnv("HTTP_PORT", "8080"),
			Env:     getEnv("APP_ENV", "development"),
			BaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		Session: SessionConfig{
			TTL:          getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
			CookieName:   getEnv("SESSION_COOKIE", "cleanops_session"),
			CookieSecure: getEnv("APP_ENV", "development") == "production",
		},
		Portal: PortalConfig{
			JWTSecret: getEnv("PORTAL_JWT_SECRET", ""),
			TokenTTL:  getEnvAsDuration("PORTAL_TOKEN_TTL", 7*24*time.Hour),
		},
		Mail: MailConfig{
			APIKey:   getEnv("RESEND_API_KEY", ""),
			From:     getEnv("MAIL_FROM", "no-reply@cleanops.app"),
			FromName: getEnv("MAIL_FROM_NAME", "CleanOps"),
		},
		Billing: BillingConfig{
			StripeKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:       getEnv("STRIPE_PRICE_ID", ""),
		},
		Geocode: GeocodeConfig{
			BaseURL: getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
			Email:   getEnv("GEOCODE_EMAIL", ""),
		},
		Limits: LimitsConfig{
			Window:     getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			AuthBudget: getEnvAsInt("RATE_LIMIT_AUTH", 10),
			GlobalRPS:  getEnvAsInt("RATE_LIMIT_GLOBAL", 100),
		},
	}
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
