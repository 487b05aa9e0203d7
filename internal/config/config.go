// Package config loads the immutable application configuration from the
// environment once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret   string
	TokenExpiry time.Duration

	// Ledger
	PricePerCredit   float64 // USD per credit
	ArtistPercentage float64 // freelancer share of gross, 0..100
	HoldingPeriod    time.Duration

	// Review workflow
	AdminReviewRequired bool

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	ConnectRefreshURL   string
	ConnectReturnURL    string

	// Slack
	SlackBotToken      string
	SlackSigningSecret string
	SlackAdminChannel  string

	// AI classification
	AIAPIURL string
	AIAPIKey string

	// Scraping
	ScrapeTimeout  time.Duration
	ScrapeMaxBytes int64

	// Rate limit (requests per minute per user)
	RateLimitPerMin int

	// Server
	Port               string
	CORSAllowedOrigins []string
}

// Load reads configuration from the environment. A .env file is applied
// first if present so local development does not need exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.JWTSecret = getEnvString("JWT_SECRET", "supersecretmvp")
	cfg.TokenExpiry = getEnvDuration("TOKEN_EXPIRY", 24*time.Hour)

	cfg.PricePerCredit = getEnvFloat("PRICE_PER_CREDIT", 10.0)
	cfg.ArtistPercentage = getEnvFloat("ARTIST_PERCENTAGE", 70.0)
	if cfg.ArtistPercentage < 0 || cfg.ArtistPercentage > 100 {
		return nil, fmt.Errorf("ARTIST_PERCENTAGE must be within [0,100], got %v", cfg.ArtistPercentage)
	}
	cfg.HoldingPeriod = getEnvDuration("HOLDING_PERIOD", 7*24*time.Hour)

	cfg.AdminReviewRequired = getEnvBool("ADMIN_REVIEW_REQUIRED", true)

	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.CheckoutSuccessURL = getEnvString("CHECKOUT_SUCCESS_URL", "http://localhost:3000/credits/success")
	cfg.CheckoutCancelURL = getEnvString("CHECKOUT_CANCEL_URL", "http://localhost:3000/credits/cancel")
	cfg.ConnectRefreshURL = getEnvString("CONNECT_REFRESH_URL", "http://localhost:3000/payouts/onboarding")
	cfg.ConnectReturnURL = getEnvString("CONNECT_RETURN_URL", "http://localhost:3000/payouts")

	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")
	cfg.SlackSigningSecret = os.Getenv("SLACK_SIGNING_SECRET")
	cfg.SlackAdminChannel = getEnvString("SLACK_ADMIN_CHANNEL", "#crafted-ops")

	cfg.AIAPIURL = os.Getenv("AI_API_URL")
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")

	cfg.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", 15*time.Second)
	cfg.ScrapeMaxBytes = getEnvInt64("SCRAPE_MAX_BYTES", 5<<20)

	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MIN", 120)

	cfg.Port = getEnvString("PORT", "8080")
	origin := getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.CORSAllowedOrigins = []string{origin}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
