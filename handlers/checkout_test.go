package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"formakit.app/cloud/models"
	"formakit.app/cloud/storage"
)

func setupServer(t *testing.T) (*Server, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage()
	product := models.Product{
		ID:        "product1",
		Slug:      "landing-kit",
		Title:     "Landing Kit",
		Published: true,
		BasePriceUSD: models.ProductPrice{
			Personal:   29,
			Commercial: 79,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.SaveProduct(t.Context(), &product); err != nil {
		t.Fatalf("Failed to save product: %v", err)
	}

	return NewHTTPServer(store), store
}

func postCheckout(t *testing.T, server *Server, userID string, reqBody CheckoutRequest) *httptest.ResponseRecorder {
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

func TestCheckout_Success(t *testing.T) {
	server, store := setupServer(t)

	w := postCheckout(t, server, "user1", CheckoutRequest{
		ProductID: "product1",
		Currency:  "USD",
		License:   "personal",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response CheckoutResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	order := response.Order
	if order == nil {
		t.Fatalf("Expected an order in the response")
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Errorf("Expected opaque ord_ id, got %q", order.ID)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %q", order.Status)
	}
	if order.Total != 29 {
		t.Errorf("Expected total 29, got %d", order.Total)
	}
	if len(order.Items) != 1 {
		t.Fatalf("Expected exactly one item, got %d", len(order.Items))
	}
	if order.Items[0].License != models.LicensePersonal {
		t.Errorf("Expected personal license, got %q", order.Items[0].License)
	}
	if response.DisplayTotal == "" {
		t.Errorf("Expected a display total")
	}

	// The order is persisted for the webhook path
	saved, err := store.GetOrder(t.Context(), order.ID)
	if err != nil || saved == nil {
		t.Fatalf("Expected order persisted, got %v, %v", saved, err)
	}

	// Checkout is audited
	if len(store.Audits) != 1 {
		t.Errorf("Expected 1 audit entry, got %d", len(store.Audits))
	}
}

func TestCheckout_CommercialEUR(t *testing.T) {
	server, _ := setupServer(t)

	w := postCheckout(t, server, "user1", CheckoutRequest{
		ProductID: "product1",
		Currency:  "EUR",
		License:   "commercial",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var response CheckoutResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// 79 * 0.92 = 72.68, rounded to 73
	if response.Order.Total != 73 {
		t.Errorf("Expected total 73, got %d", response.Order.Total)
	}
	if response.Order.Currency != models.CurrencyEUR {
		t.Errorf("Expected EUR, got %s", response.Order.Currency)
	}
}

func TestCheckout_UnknownProduct(t *testing.T) {
	server, store := setupServer(t)

	w := postCheckout(t, server, "user1", CheckoutRequest{
		ProductID: "ghost",
		Currency:  "USD",
		License:   "personal",
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	// NotFound creates nothing
	if len(store.Orders) != 0 {
		t.Errorf("Expected no orders, got %d", len(store.Orders))
	}
}

func TestCheckout_InvalidCurrency(t *testing.T) {
	server, _ := setupServer(t)

	w := postCheckout(t, server, "user1", CheckoutRequest{
		ProductID: "product1",
		Currency:  "GBP",
		License:   "personal",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCheckout_InvalidLicense(t *testing.T) {
	server, _ := setupServer(t)

	w := postCheckout(t, server, "user1", CheckoutRequest{
		ProductID: "product1",
		Currency:  "USD",
		License:   "enterprise",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCheckout_MissingIdentity(t *testing.T) {
	server, _ := setupServer(t)

	w := postCheckout(t, server, "", CheckoutRequest{
		ProductID: "product1",
		Currency:  "USD",
		License:   "personal",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestCheckout_EmptyBody(t *testing.T) {
	server, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(""))
	req.Header.Set("X-User-ID", "user1")

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestBuildOrder_DoesNotPersist(t *testing.T) {
	server, store := setupServer(t)

	order, err := server.BuildOrder(t.Context(), "user1", "product1", "", models.CurrencyUSD, models.LicensePersonal)
	if err != nil {
		t.Fatalf("BuildOrder failed: %v", err)
	}
	if order == nil {
		t.Fatalf("Expected an order")
	}

	if len(store.Orders) != 0 {
		t.Errorf("BuildOrder must not persist, found %d orders", len(store.Orders))
	}
}

func TestBuildOrder_NotFoundSentinel(t *testing.T) {
	server, _ := setupServer(t)

	order, err := server.BuildOrder(t.Context(), "user1", "ghost", "", models.CurrencyUSD, models.LicensePersonal)
	if err != nil {
		t.Fatalf("Expected nil error for missing product, got %v", err)
	}
	if order != nil {
		t.Errorf("Expected nil order for missing product, got %v", order)
	}
}
