package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"formakit.app/cloud/models"
)

// Storage is the shared relational store behind the catalog, orders,
// download tokens and the audit trail. Absent rows are signalled with a
// nil result and nil error, not with an error.
type Storage interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListPublishedProducts(ctx context.Context) ([]*models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error

	// FindRecentTokens returns tokens for (user, product) whose absolute
	// expiry is still in the future, newest first, capped at limit.
	FindRecentTokens(ctx context.Context, userID, productID string, limit int) ([]*models.DownloadToken, error)
	FindTokensByUser(ctx context.Context, userID string) ([]*models.DownloadToken, error)
	SaveToken(ctx context.Context, token *models.DownloadToken) error

	SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error

	Close() error
}

// MemoryStorage keeps everything in process memory. Used in tests and
// as the checkout builder's stand-in store.
type MemoryStorage struct {
	mu       sync.RWMutex
	Products map[string]models.Product
	Orders   map[string]models.Order
	Tokens   map[string]models.DownloadToken
	Audits   map[string]models.AuditEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Products: make(map[string]models.Product),
		Orders:   make(map[string]models.Order),
		Tokens:   make(map[string]models.DownloadToken),
		Audits:   make(map[string]models.AuditEntry),
	}
}

func (m *MemoryStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	product, exists := m.Products[id]
	if !exists {
		return nil, nil
	}
	return &product, nil
}

func (m *MemoryStorage) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, product := range m.Products {
		if product.Slug == slug {
			productCopy := product
			return &productCopy, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListPublishedProducts(ctx context.Context) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var products []*models.Product
	for _, product := range m.Products {
		if !product.Published {
			continue
		}
		productCopy := product
		products = append(products, &productCopy)
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].Slug < products[j].Slug
	})
	return products, nil
}

func (m *MemoryStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Products[product.ID] = *product
	return nil
}

func (m *MemoryStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, exists := m.Orders[id]
	if !exists {
		return nil, nil
	}
	orderCopy := order
	orderCopy.Items = append([]models.OrderItem(nil), order.Items...)
	return &orderCopy, nil
}

func (m *MemoryStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	orderCopy := *order
	orderCopy.Items = append([]models.OrderItem(nil), order.Items...)
	m.Orders[order.ID] = orderCopy
	return nil
}

func (m *MemoryStorage) FindRecentTokens(ctx context.Context, userID, productID string, limit int) ([]*models.DownloadToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var tokens []*models.DownloadToken
	for _, token := range m.Tokens {
		if token.UserID != userID || token.ProductID != productID {
			continue
		}
		if !token.ExpiresAt.After(now) {
			continue
		}
		tokenCopy := token
		tokens = append(tokens, &tokenCopy)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	if limit > 0 && len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

func (m *MemoryStorage) FindTokensByUser(ctx context.Context, userID string) ([]*models.DownloadToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []*models.DownloadToken
	for _, token := range m.Tokens {
		if token.UserID != userID {
			continue
		}
		tokenCopy := token
		tokens = append(tokens, &tokenCopy)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	return tokens, nil
}

func (m *MemoryStorage) SaveToken(ctx context.Context, token *models.DownloadToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Tokens[token.ID] = *token
	return nil
}

func (m *MemoryStorage) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Audits[entry.ID] = *entry
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
