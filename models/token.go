package models

import "time"

const (
	// TokenValidity is how long a freshly granted download token lasts.
	TokenValidity = 30 * 24 * time.Hour
	// TokenMaxUses is the download ceiling for a freshly granted token.
	TokenMaxUses = 10
)

// DownloadToken is a time- and use-bounded credential granting access
// to a product's downloadable asset. Tokens are append-only: they are
// never deleted, only expire or run out of uses.
type DownloadToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   int       `json:"max_uses"`
	UsedCount int       `json:"used_count"`
	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the token still grants access at the given
// instant: not past its expiry and not exhausted by use count.
func (t *DownloadToken) IsActive(now time.Time) bool {
	return t.ExpiresAt.After(now) && t.UsedCount < t.MaxUses
}
