package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

// ShortfallError is returned by Book when an item does not fit in stock.
type ShortfallError struct {
	ProductID    string
	Requested    int
	MaxAvailable int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d requested, %d available", e.ProductID, e.Requested, e.MaxAvailable)
}

var ErrUnknownProduct = errors.New("unknown product")

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, total
		FROM inventory.stock
		ORDER BY product_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.StockLevel{}
	for rows.Next() {
		var stock domain.StockLevel
		if err := rows.Scan(&stock.ProductID, &stock.Total); err != nil {
			return nil, err
		}
		items = append(items, stock)
	}

	return items, rows.Err()
}

// SetStock creates or replaces the stock total of a product.
func (r *InventoryRepository) SetStock(ctx context.Context, productID string, total int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory.stock (product_id, total) VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET total = EXCLUDED.total
	`, productID, total)
	return err
}

func overlapping(ctx context.Context, q querier, productID string, start, end domain.Date) ([]domain.Booking, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, product_id, start_date, end_date, quantity
		FROM inventory.bookings
		WHERE product_id = $1 AND start_date <= $3 AND end_date >= $2
	`, productID, start, end)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.OrderID, &b.ProductID, &b.StartDate, &b.EndDate, &b.Quantity); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Availability returns nil for products without a stock row.
func (r *InventoryRepository) Availability(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.Availability, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT total FROM inventory.stock WHERE product_id = $1`, productID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bookings, err := overlapping(ctx, r.db, productID, start, end)
	if err != nil {
		return nil, err
	}

	a := Available(total, bookings, start, end, quantity)
	return &a, nil
}

// Book records every item of an order or none of them. Stock rows of the
// involved products are locked in id order for the duration of the
// transaction. Booking an order that already has bookings is a no-op.
func (r *InventoryRepository) Book(ctx context.Context, orderID string, items []domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM inventory.bookings WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	totals, err := lockStock(ctx, tx, items)
	if err != nil {
		return err
	}

	for _, item := range items {
		bookings, err := overlapping(ctx, tx, item.ProductID, item.StartDate, item.EndDate)
		if err != nil {
			return err
		}

		a := Available(totals[item.ProductID], bookings, item.StartDate, item.EndDate, item.Quantity)
		if !a.Available {
			return &ShortfallError{ProductID: item.ProductID, Requested: item.Quantity, MaxAvailable: a.MaxAvailable}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory.bookings (order_id, product_id, start_date, end_date, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, item.ProductID, item.StartDate, item.EndDate, item.Quantity)
		if err != nil {
			return fmt.Errorf("insert booking for %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

func lockStock(ctx context.Context, tx *sql.Tx, items []domain.Booking) (map[string]int, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	totals := make(map[string]int, len(ids))
	for _, id := range ids {
		var total int
		err := tx.QueryRowContext(ctx, `SELECT total FROM inventory.stock WHERE product_id = $1 FOR UPDATE`, id).Scan(&total)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
		}
		if err != nil {
			return nil, err
		}
		totals[id] = total
	}
	return totals, nil
}

// Release drops every booking of an order and reports how many rows went.
func (r *InventoryRepository) Release(ctx context.Context, orderID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inventory.bookings WHERE order_id = $1`, strings.TrimSpace(orderID))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
