package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"formakit.app/cloud/handlers"
	"formakit.app/cloud/models"
	"formakit.app/cloud/storage"
)

// TestStorage creates an empty in-memory store.
func TestStorage() *storage.MemoryStorage {
	return storage.NewMemoryStorage()
}

// CreateTestProduct creates a published test product.
func CreateTestProduct(id, slug string) models.Product {
	return models.Product{
		ID:          id,
		Slug:        slug,
		Title:       "Test " + slug,
		Description: "test product",
		Published:   true,
		BasePriceUSD: models.ProductPrice{
			Personal:   50,
			Commercial: 150,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// CreateTestOrder creates a pending order with one item per product id.
func CreateTestOrder(id, userID string, productIDs ...string) models.Order {
	items := make([]models.OrderItem, 0, len(productIDs))
	for _, productID := range productIDs {
		items = append(items, models.OrderItem{
			ProductID: productID,
			License:   models.LicensePersonal,
			UnitPrice: 50,
		})
	}
	return models.Order{
		ID:        id,
		UserID:    userID,
		Currency:  models.CurrencyUSD,
		Total:     int64(len(items)) * 50,
		Status:    models.OrderStatusPending,
		Items:     items,
		CreatedAt: time.Now(),
	}
}

// CreateTestToken creates a download token; expiresIn may be negative
// for an already expired token.
func CreateTestToken(id, userID, productID string, expiresIn time.Duration, usedCount int) models.DownloadToken {
	return models.DownloadToken{
		ID:        id,
		UserID:    userID,
		ProductID: productID,
		ExpiresAt: time.Now().Add(expiresIn),
		MaxUses:   models.TokenMaxUses,
		UsedCount: usedCount,
		CreatedAt: time.Now(),
	}
}

// SetupTestData seeds products, an order and a few tokens.
func SetupTestData(store storage.Storage) error {
	ctx := context.Background()

	products := []models.Product{
		CreateTestProduct("product1", "landing-kit"),
		CreateTestProduct("product2", "dashboard-kit"),
	}
	for _, product := range products {
		if err := store.SaveProduct(ctx, &product); err != nil {
			return fmt.Errorf("failed to save product %s: %w", product.ID, err)
		}
	}

	order := CreateTestOrder("order1", "user1", "product1")
	if err := store.SaveOrder(ctx, &order); err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}

	return nil
}

// MakeCheckoutRequest sends a checkout request for the given user.
func MakeCheckoutRequest(t *testing.T, server *handlers.Server, userID string, reqBody handlers.CheckoutRequest) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

// CreateStripeWebhookPayload builds a webhook event body.
func CreateStripeWebhookPayload(eventType string, sessionData map[string]interface{}) []byte {
	event := map[string]interface{}{
		"id":   "evt_test123",
		"type": eventType,
		"data": map[string]interface{}{
			"object": sessionData,
		},
	}

	payload, _ := json.Marshal(event)
	return payload
}

// CreateCheckoutSessionData builds a completed checkout session object
// referencing an order.
func CreateCheckoutSessionData(sessionID, orderID string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"amount_total":   5000,
		"currency":       "usd",
		"payment_status": "paid",
		"metadata": map[string]interface{}{
			"order_id": orderID,
		},
	}
}

// MakeStripeWebhookRequest sends a webhook request in test mode.
func MakeStripeWebhookRequest(t *testing.T, server *handlers.Server, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	t.Setenv("TEST_MODE", "true")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "test-signature")

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

// AssertErrorResponse checks status code and error message.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	if w.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if response["error"] != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, response["error"])
	}
}
