package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"formakit.app/cloud/handlers"
	"formakit.app/cloud/internal/config"
	"formakit.app/cloud/internal/email"
	"formakit.app/cloud/internal/logger"
	"formakit.app/cloud/models"
	"formakit.app/cloud/storage"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	if versionBytes, err := os.ReadFile("VERSION"); err == nil {
		version = strings.TrimSpace(string(versionBytes))
	}

	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %s", err)
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Release:          version,
		TracesSampleRate: 1.0,
	}); err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	store, err := storage.NewSQLiteStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("storage: %s", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", logger.Fields{"error": err.Error()})
		}
	}()

	if err := seedCatalog(context.Background(), store); err != nil {
		log.Fatalf("seed catalog: %s", err)
	}

	server := handlers.NewHTTPServer(store,
		handlers.WithVersion(version),
		handlers.WithCORS(cfg.CORSOrigins),
		handlers.WithEmail(email.NewFromEnv()),
	)

	logger.Info("Formakit cloud API starting", logger.Fields{
		"version": version,
		"port":    cfg.Port,
	})
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router))
}

// seedCatalog inserts the launch catalog on first boot. Catalog
// management has no admin UI yet; products ship with the binary.
func seedCatalog(ctx context.Context, store storage.Storage) error {
	existing, err := store.ListPublishedProducts(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	products := []models.Product{
		{
			Slug:        "landing-page-kit",
			Title:       "Landing Page Kit",
			Description: "Conversion-focused landing page templates.",
			BasePriceUSD: models.ProductPrice{
				Personal:   29,
				Commercial: 79,
			},
		},
		{
			Slug:        "dashboard-ui-kit",
			Title:       "Dashboard UI Kit",
			Description: "Admin dashboard components and layouts.",
			BasePriceUSD: models.ProductPrice{
				Personal:   49,
				Commercial: 129,
			},
		},
		{
			Slug:        "starter-bundle",
			Title:       "Starter Bundle",
			Description: "Every template, one download.",
			IsBundle:    true,
			BasePriceUSD: models.ProductPrice{
				Personal:   99,
				Commercial: 249,
			},
		},
	}

	for i := range products {
		product := products[i]
		product.ID = uuid.Must(uuid.NewRandom()).String()
		product.Published = true
		product.CreatedAt = now
		product.UpdatedAt = now
		if err := store.SaveProduct(ctx, &product); err != nil {
			return err
		}
	}

	logger.Info("Catalog seeded", logger.Fields{"products": len(products)})
	return nil
}
