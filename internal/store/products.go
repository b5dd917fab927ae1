package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atriumhq/atrium/internal/domain"
)

func (s *PostgresStore) SaveProduct(ctx context.Context, p *domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO products (id, data, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, p.ID, data, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM products WHERE id = $1
	`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM products ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p domain.Product
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
