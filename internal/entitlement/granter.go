// Package entitlement issues download tokens after a completed order.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"formakit.app/cloud/internal/logger"
	"formakit.app/cloud/models"
	"formakit.app/cloud/storage"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// recentTokenWindow bounds how many unexpired tokens per (user, product)
// the dedup check inspects, newest first.
const recentTokenWindow = 5

type Granter struct {
	storage storage.Storage
	now     func() time.Time
}

func New(store storage.Storage) *Granter {
	return &Granter{
		storage: store,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Grant issues one download token per distinct product in the order,
// unless an active token for that (user, product) already exists. A
// missing order is a no-op: callers fire this off a payment webhook, so
// absence means a data race or an already-processed event, not a fault.
//
// The check-then-create sequence is not serialized; two concurrent
// grants for the same order can both observe "no active token" and each
// insert one. Recovery is idempotent because downloads only require one
// active token.
func (g *Granter) Grant(ctx context.Context, orderID string) error {
	order, err := g.storage.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order == nil {
		logger.Warn("Order not found for token grant, skipping", logger.Fields{
			"order_id": orderID,
		})
		return nil
	}

	var errs *multierror.Error
	for _, productID := range distinctProductIDs(order.Items) {
		if err := g.grantProduct(ctx, order.UserID, productID); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("product %s: %w", productID, err))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("failed to grant tokens for order %s: %w", orderID, err)
	}

	logger.Info("Download tokens granted", logger.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	})
	return nil
}

func (g *Granter) grantProduct(ctx context.Context, userID, productID string) error {
	now := g.now()

	recent, err := g.storage.FindRecentTokens(ctx, userID, productID, recentTokenWindow)
	if err != nil {
		return fmt.Errorf("failed to load recent tokens: %w", err)
	}

	for _, token := range recent {
		if token.IsActive(now) {
			logger.Debug("Active token exists, skipping grant", logger.Fields{
				"user_id":    userID,
				"product_id": productID,
			})
			return nil
		}
	}

	token := &models.DownloadToken{
		ID:        uuid.Must(uuid.NewRandom()).String(),
		UserID:    userID,
		ProductID: productID,
		ExpiresAt: now.Add(models.TokenValidity),
		MaxUses:   models.TokenMaxUses,
		UsedCount: 0,
		CreatedAt: now,
	}

	if err := g.storage.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	logger.Info("Download token created", logger.Fields{
		"user_id":    userID,
		"product_id": productID,
		"expires_at": token.ExpiresAt,
	})
	return nil
}

// distinctProductIDs dedupes order items; an order may reference the
// same product through several variants.
func distinctProductIDs(items []models.OrderItem) []string {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, item := range items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		ids = append(ids, item.ProductID)
	}
	return ids
}
