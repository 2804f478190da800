package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"formakit.app/cloud/internal/logger"
	"formakit.app/cloud/internal/pricing"
	"formakit.app/cloud/models"
	"github.com/google/uuid"
)

type CheckoutRequest struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant"`
	Currency  string `json:"currency"`
	License   string `json:"license"`
}

type CheckoutResponse struct {
	Order        *models.Order `json:"order"`
	DisplayTotal string        `json:"display_total"`
}

func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := currentUserID(r)
	if userID == "" {
		writeErrorResponse(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cur, err := models.ParseCurrency(req.Currency)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	license, err := models.ParseLicense(req.License)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Unsupported license type")
		return
	}

	order, err := s.BuildOrder(ctx, userID, req.ProductID, req.Variant, cur, license)
	if err != nil {
		logger.Error("Failed to build order", logger.Fields{
			"error":      err.Error(),
			"product_id": req.ProductID,
			"user_id":    userID,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to build order")
		return
	}
	if order == nil {
		writeErrorResponse(w, http.StatusNotFound, "Product not found")
		return
	}

	if err := s.Storage.SaveOrder(ctx, order); err != nil {
		logger.Error("Failed to save order", logger.Fields{
			"error":    err.Error(),
			"order_id": order.ID,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to save order")
		return
	}

	// Best-effort; checkout must not fail on a broken audit trail
	_ = s.Audit.Record(ctx, userID, "order.created", "order", order.ID,
		fmt.Sprintf("product=%s license=%s", req.ProductID, license))

	logger.Info("Order created", logger.Fields{
		"order_id":   order.ID,
		"user_id":    userID,
		"product_id": req.ProductID,
		"total":      order.Total,
		"currency":   order.Currency,
	})

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		Order:        order,
		DisplayTotal: pricing.Format(order.Total, order.Currency),
	})
}

// BuildOrder assembles a pending single-item order from a catalog
// lookup. Returns nil when the product does not exist; this is the
// expected outcome for a stale product id, not an error. The order is
// not persisted and no payment provider is contacted here.
func (s *Server) BuildOrder(ctx context.Context, userID, productID, variant string, cur models.Currency, license models.License) (*models.Order, error) {
	product, err := s.Storage.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, nil
	}

	unitPrice := pricing.PriceFor(product, license, cur)

	return &models.Order{
		ID:       newOrderID(),
		UserID:   userID,
		Currency: cur,
		Total:    unitPrice,
		Status:   models.OrderStatusPending,
		Items: []models.OrderItem{{
			ProductID: product.ID,
			Variant:   variant,
			License:   license,
			UnitPrice: unitPrice,
		}},
		CreatedAt: time.Now().UTC(),
	}, nil
}

func newOrderID() string {
	return fmt.Sprintf("ord_%s", uuid.Must(uuid.NewRandom()).String()[:8])
}
