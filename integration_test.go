package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"formakit.app/cloud/handlers"
	"formakit.app/cloud/internal/testutil"
	"formakit.app/cloud/models"
)

// TestPurchaseFlow walks the full storefront path: browse the catalog,
// check out, receive the payment webhook, then list the granted
// downloads.
func TestPurchaseFlow(t *testing.T) {
	store := testutil.TestStorage()
	if err := testutil.SetupTestData(store); err != nil {
		t.Fatalf("Failed to seed test data: %v", err)
	}
	server := handlers.NewHTTPServer(store)

	// Browse
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Catalog: expected status 200, got %d", w.Code)
	}
	var catalog []handlers.ProductResponse
	if err := json.NewDecoder(w.Body).Decode(&catalog); err != nil {
		t.Fatalf("Catalog: failed to decode response: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("Catalog: expected 2 products, got %d", len(catalog))
	}

	// Check out
	w = testutil.MakeCheckoutRequest(t, server, "buyer1", handlers.CheckoutRequest{
		ProductID: "product1",
		Currency:  "USD",
		License:   "personal",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Checkout: expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var checkout handlers.CheckoutResponse
	if err := json.NewDecoder(w.Body).Decode(&checkout); err != nil {
		t.Fatalf("Checkout: failed to decode response: %v", err)
	}
	if checkout.Order.Status != models.OrderStatusPending {
		t.Errorf("Checkout: expected pending order, got %s", checkout.Order.Status)
	}

	// Payment confirmation
	payload := testutil.CreateStripeWebhookPayload(
		"checkout.session.completed",
		testutil.CreateCheckoutSessionData("cs_test1", checkout.Order.ID),
	)
	w = testutil.MakeStripeWebhookRequest(t, server, payload)
	if w.Code != http.StatusOK {
		t.Fatalf("Webhook: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// Downloads
	req = httptest.NewRequest(http.MethodGet, "/api/v1/downloads", nil)
	req.Header.Set("X-User-ID", "buyer1")
	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Downloads: expected status 200, got %d", w.Code)
	}
	var downloads []handlers.DownloadTokenResponse
	if err := json.NewDecoder(w.Body).Decode(&downloads); err != nil {
		t.Fatalf("Downloads: failed to decode response: %v", err)
	}
	if len(downloads) != 1 {
		t.Fatalf("Downloads: expected 1 token, got %d", len(downloads))
	}
	if downloads[0].ProductID != "product1" || !downloads[0].IsActive {
		t.Errorf("Downloads: unexpected token %+v", downloads[0])
	}

	// Replayed webhook does not grant again
	w = testutil.MakeStripeWebhookRequest(t, server, payload)
	if w.Code != http.StatusOK {
		t.Fatalf("Webhook replay: expected status 200, got %d", w.Code)
	}
	if len(store.Tokens) != 1 {
		t.Errorf("Webhook replay: expected 1 token, got %d", len(store.Tokens))
	}
}

func TestCheckoutValidation(t *testing.T) {
	store := testutil.TestStorage()
	if err := testutil.SetupTestData(store); err != nil {
		t.Fatalf("Failed to seed test data: %v", err)
	}
	server := handlers.NewHTTPServer(store)

	w := testutil.MakeCheckoutRequest(t, server, "", handlers.CheckoutRequest{
		ProductID: "product1",
		Currency:  "USD",
		License:   "personal",
	})
	testutil.AssertErrorResponse(t, w, http.StatusUnauthorized, "Missing user identity")

	w = testutil.MakeCheckoutRequest(t, server, "buyer1", handlers.CheckoutRequest{
		ProductID: "no-such-product",
		Currency:  "USD",
		License:   "personal",
	})
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, "Product not found")
}
