package config

import (
	"errors"
	"os"
	"strings"
)

type Config struct {
	Port string

	DatabaseURL string

	StripeSecret        string
	StripeWebhookSecret string

	SentryDSN string

	CORSOrigins []string
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	stripeSecret := os.Getenv("STRIPE_SECRET")
	if stripeSecret == "" {
		return nil, errors.New("STRIPE_SECRET environment variable is required")
	}

	stripeWebhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if stripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET environment variable is required")
	}

	corsOrigins := []string{"https://formakit.app"}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		corsOrigins = nil
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		StripeSecret:        stripeSecret,
		StripeWebhookSecret: stripeWebhookSecret,
		SentryDSN:           os.Getenv("SENTRY_DSN"),
		CORSOrigins:         corsOrigins,
	}, nil
}
