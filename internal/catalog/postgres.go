package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads every product row, hidden ones included, so carts created before
// a product was hidden still price correctly.
func (r *Repository) Load(ctx context.Context) (*Catalog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, pricing_mode, unit_price, category, colors, visible
		FROM catalog.products
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PricingMode, &p.UnitPrice, &p.Category, &p.Colors, &p.Visible)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}

	return New(products...), nil
}
