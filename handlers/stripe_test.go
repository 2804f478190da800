package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"formakit.app/cloud/models"
	"formakit.app/cloud/storage"
)

func webhookPayload(eventType string, sessionData map[string]interface{}) []byte {
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

func checkoutSessionData(sessionID, orderID string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"amount_total":   2900,
		"currency":       "usd",
		"payment_status": "paid",
		"metadata": map[string]interface{}{
			"order_id": orderID,
		},
	}
}

func postWebhook(t *testing.T, server *Server, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	t.Setenv("TEST_MODE", "true")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "test-signature")

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

func saveTestOrder(t *testing.T, store storage.Storage, id, userID string, productIDs ...string) {
	t.Helper()

	items := make([]models.OrderItem, 0, len(productIDs))
	for _, productID := range productIDs {
		items = append(items, models.OrderItem{
			ProductID: productID,
			License:   models.LicensePersonal,
			UnitPrice: 29,
		})
	}
	order := models.Order{
		ID:        id,
		UserID:    userID,
		Currency:  models.CurrencyUSD,
		Total:     int64(len(items)) * 29,
		Status:    models.OrderStatusPending,
		Items:     items,
		CreatedAt: time.Now(),
	}
	if err := store.SaveOrder(t.Context(), &order); err != nil {
		t.Fatalf("Failed to save order: %v", err)
	}
}

func TestStripe_CheckoutCompletedGrantsTokens(t *testing.T) {
	server, store := setupServer(t)
	saveTestOrder(t, store, "order1", "user1", "product1")

	payload := webhookPayload("checkout.session.completed", checkoutSessionData("cs_test1", "order1"))
	w := postWebhook(t, server, payload)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(store.Tokens) != 1 {
		t.Fatalf("Expected 1 download token, got %d", len(store.Tokens))
	}
	for _, token := range store.Tokens {
		if token.UserID != "user1" || token.ProductID != "product1" {
			t.Errorf("Unexpected token owner %s/%s", token.UserID, token.ProductID)
		}
		if token.MaxUses != models.TokenMaxUses || token.UsedCount != 0 {
			t.Errorf("Unexpected token limits: max %d, used %d", token.MaxUses, token.UsedCount)
		}
	}

	// The grant is audited
	if len(store.Audits) != 1 {
		t.Errorf("Expected 1 audit entry, got %d", len(store.Audits))
	}
}

func TestStripe_MissingOrderIsNoOp(t *testing.T) {
	server, store := setupServer(t)

	payload := webhookPayload("checkout.session.completed", checkoutSessionData("cs_test1", "does-not-exist"))
	w := postWebhook(t, server, payload)

	// Missing order means an already-processed event or a data race,
	// not a webhook failure
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if len(store.Tokens) != 0 {
		t.Errorf("Expected no tokens, got %d", len(store.Tokens))
	}
}

func TestStripe_SessionWithoutOrderMetadata(t *testing.T) {
	server, store := setupServer(t)

	session := map[string]interface{}{
		"id":             "cs_test1",
		"payment_status": "paid",
	}
	w := postWebhook(t, server, webhookPayload("checkout.session.completed", session))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if len(store.Tokens) != 0 {
		t.Errorf("Expected no tokens, got %d", len(store.Tokens))
	}
}

func TestStripe_UnhandledEventType(t *testing.T) {
	server, store := setupServer(t)

	payload := webhookPayload("invoice.paid", map[string]interface{}{"id": "in_test"})
	w := postWebhook(t, server, payload)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for unhandled event, got %d", w.Code)
	}
	if len(store.Tokens) != 0 {
		t.Errorf("Expected no tokens, got %d", len(store.Tokens))
	}
}

func TestStripe_InvalidJSON(t *testing.T) {
	server, _ := setupServer(t)

	w := postWebhook(t, server, []byte("{not json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestStripe_RepeatedWebhookDoesNotDuplicateTokens(t *testing.T) {
	server, store := setupServer(t)
	saveTestOrder(t, store, "order1", "user1", "product1")

	payload := webhookPayload("checkout.session.completed", checkoutSessionData("cs_test1", "order1"))
	for i := 0; i < 3; i++ {
		if w := postWebhook(t, server, payload); w.Code != http.StatusOK {
			t.Fatalf("Webhook %d: expected 200, got %d", i, w.Code)
		}
	}

	if len(store.Tokens) != 1 {
		t.Errorf("Expected 1 token after repeated webhooks, got %d", len(store.Tokens))
	}
}
