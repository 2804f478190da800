package handlers

import (
	"net/http"

	"formakit.app/cloud/internal/logger"
	"formakit.app/cloud/internal/pricing"
	"formakit.app/cloud/models"
	"github.com/go-chi/chi/v5"
)

type ProductResponse struct {
	*models.Product
	DisplayPrice string `json:"display_price"`
}

func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	cur := displayCurrency(r)

	products, err := s.Storage.ListPublishedProducts(r.Context())
	if err != nil {
		logger.Error("Failed to list products", logger.Fields{
			"error": err.Error(),
		})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}

	responses := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		responses = append(responses, productResponse(product, cur))
	}

	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	product, err := s.Storage.FindProductBySlug(r.Context(), slug)
	if err != nil {
		logger.Error("Failed to load product", logger.Fields{
			"error": err.Error(),
			"slug":  slug,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to load product")
		return
	}
	if product == nil || !product.Published {
		writeErrorResponse(w, http.StatusNotFound, "Product not found")
		return
	}

	writeJSON(w, http.StatusOK, productResponse(product, displayCurrency(r)))
}

func productResponse(product *models.Product, cur models.Currency) ProductResponse {
	personal := pricing.PriceFor(product, models.LicensePersonal, cur)
	return ProductResponse{
		Product:      product,
		DisplayPrice: pricing.Format(personal, cur),
	}
}

// displayCurrency reads the optional ?currency= query parameter,
// defaulting to USD. Unknown values fall back to the default rather
// than failing a read-only page.
func displayCurrency(r *http.Request) models.Currency {
	cur, err := models.ParseCurrency(r.URL.Query().Get("currency"))
	if err != nil {
		return models.CurrencyUSD
	}
	return cur
}
