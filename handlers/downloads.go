package handlers

import (
	"net/http"
	"time"

	"formakit.app/cloud/internal/logger"
	"formakit.app/cloud/models"
)

type DownloadTokenResponse struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	ProductSlug  string    `json:"product_slug"`
	ProductTitle string    `json:"product_title"`
	ExpiresAt    time.Time `json:"expires_at"`
	MaxUses      int       `json:"max_uses"`
	UsedCount    int       `json:"used_count"`
	IsActive     bool      `json:"is_active"`
}

// ListDownloads exposes the download token read model for the
// requesting user. Serving the actual files happens elsewhere.
func (s *Server) ListDownloads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := currentUserID(r)
	if userID == "" {
		writeErrorResponse(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	tokens, err := s.Storage.FindTokensByUser(ctx, userID)
	if err != nil {
		logger.Error("Failed to list download tokens", logger.Fields{
			"error":   err.Error(),
			"user_id": userID,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to load downloads")
		return
	}

	now := time.Now().UTC()
	products := make(map[string]*models.Product)
	responses := make([]DownloadTokenResponse, 0, len(tokens))

	for _, token := range tokens {
		product, cached := products[token.ProductID]
		if !cached {
			product, err = s.Storage.GetProduct(ctx, token.ProductID)
			if err != nil {
				logger.Error("Failed to resolve token product", logger.Fields{
					"error":      err.Error(),
					"product_id": token.ProductID,
				})
				writeErrorResponse(w, http.StatusInternalServerError, "Failed to load downloads")
				return
			}
			products[token.ProductID] = product
		}

		response := DownloadTokenResponse{
			ID:        token.ID,
			ProductID: token.ProductID,
			ExpiresAt: token.ExpiresAt,
			MaxUses:   token.MaxUses,
			UsedCount: token.UsedCount,
			IsActive:  token.IsActive(now),
		}
		if product != nil {
			response.ProductSlug = product.Slug
			response.ProductTitle = product.Title
		}
		responses = append(responses, response)
	}

	writeJSON(w, http.StatusOK, responses)
}
