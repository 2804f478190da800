package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"formakit.app/cloud/models"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: path,
	}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLiteStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT id, slug, title, description, is_bundle, published, price_personal_usd, price_commercial_usd, created_at, updated_at FROM products WHERE id = ?`
	return s.scanProduct(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStorage) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	query := `SELECT id, slug, title, description, is_bundle, published, price_personal_usd, price_commercial_usd, created_at, updated_at FROM products WHERE slug = ?`
	return s.scanProduct(s.db.QueryRowContext(ctx, query, slug))
}

func (s *SQLiteStorage) scanProduct(row *sql.Row) (*models.Product, error) {
	var product models.Product
	err := row.Scan(
		&product.ID,
		&product.Slug,
		&product.Title,
		&product.Description,
		&product.IsBundle,
		&product.Published,
		&product.BasePriceUSD.Personal,
		&product.BasePriceUSD.Commercial,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (s *SQLiteStorage) ListPublishedProducts(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT id, slug, title, description, is_bundle, published, price_personal_usd, price_commercial_usd, created_at, updated_at FROM products WHERE published = 1 ORDER BY slug`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var products []*models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.Slug,
			&product.Title,
			&product.Description,
			&product.IsBundle,
			&product.Published,
			&product.BasePriceUSD.Personal,
			&product.BasePriceUSD.Commercial,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (s *SQLiteStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	query := `INSERT OR REPLACE INTO products (id, slug, title, description, is_bundle, published, price_personal_usd, price_commercial_usd, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		product.ID,
		product.Slug,
		product.Title,
		product.Description,
		product.IsBundle,
		product.Published,
		product.BasePriceUSD.Personal,
		product.BasePriceUSD.Commercial,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT id, user_id, currency, total, status, created_at FROM orders WHERE id = ?`

	var order models.Order
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.Currency,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (s *SQLiteStorage) getOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	query := `SELECT product_id, variant, license, unit_price FROM order_items WHERE order_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Variant, &item.License, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (s *SQLiteStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO orders (id, user_id, currency, total, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.Currency,
		order.Total,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, variant, license, unit_price) VALUES (?, ?, ?, ?, ?)`,
			order.ID,
			item.ProductID,
			item.Variant,
			item.License,
			item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to save order item: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) FindRecentTokens(ctx context.Context, userID, productID string, limit int) ([]*models.DownloadToken, error) {
	query := `SELECT id, user_id, product_id, expires_at, max_uses, used_count, created_at FROM download_tokens WHERE user_id = ? AND product_id = ? AND expires_at > ? ORDER BY created_at DESC LIMIT ?`
	return s.queryTokens(ctx, query, userID, productID, time.Now().UTC(), limit)
}

func (s *SQLiteStorage) FindTokensByUser(ctx context.Context, userID string) ([]*models.DownloadToken, error) {
	query := `SELECT id, user_id, product_id, expires_at, max_uses, used_count, created_at FROM download_tokens WHERE user_id = ? ORDER BY created_at DESC`
	return s.queryTokens(ctx, query, userID)
}

func (s *SQLiteStorage) queryTokens(ctx context.Context, query string, args ...interface{}) ([]*models.DownloadToken, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var tokens []*models.DownloadToken
	for rows.Next() {
		var token models.DownloadToken
		err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.ProductID,
			&token.ExpiresAt,
			&token.MaxUses,
			&token.UsedCount,
			&token.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, &token)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	return tokens, nil
}

func (s *SQLiteStorage) SaveToken(ctx context.Context, token *models.DownloadToken) error {
	query := `INSERT OR REPLACE INTO download_tokens (id, user_id, product_id, expires_at, max_uses, used_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.ProductID,
		token.ExpiresAt,
		token.MaxUses,
		token.UsedCount,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	query := `INSERT INTO audit_entries (id, actor_user_id, action, target_type, target_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorUserID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Details,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
