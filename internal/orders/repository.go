package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

// ErrSessionNotAttached is returned when a payment session cannot be stored
// because the order is missing or no longer pending.
var ErrSessionNotAttached = errors.New("payment session not attached")

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create stores the order and its items in one transaction and assigns the
// order id.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders.orders (
			id, customer_name, customer_email, customer_phone, customer_address,
			subtotal, travel_cost, travel_cost_pending, total, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, order.ID, order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.CustomerAddress,
		order.Subtotal, order.TravelCost, order.TravelCostPending, order.Total, order.Status,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders.order_items (
				id, order_id, product_id, product_name, quantity, price_per_day,
				pricing_mode, start_date, end_date, rental_days, item_total, color
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, uuid.New().String(), order.ID, item.ProductID, item.ProductName, item.Quantity, item.PricePerDay,
			item.PricingMode, item.StartDate, item.EndDate, item.RentalDays, item.ItemTotal, item.Color)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

// SetPaymentSession records the payment session of a pending order.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders SET payment_session_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, sessionID, orderID, domain.OrderStatusPending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: order %s", ErrSessionNotAttached, orderID)
	}
	return nil
}

const orderColumns = `
	id, customer_name, customer_email, customer_phone, customer_address,
	subtotal, travel_cost, travel_cost_pending, total, status, payment_session_id,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var session sql.NullString
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.CustomerAddress,
		&o.Subtotal, &o.TravelCost, &o.TravelCostPending, &o.Total, &o.Status, &session,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if session.Valid {
		o.PaymentSessionID = &session.String
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders.orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns orders newest first, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders.orders`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}
	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, quantity, price_per_day, pricing_mode,
			start_date, end_date, rental_days, item_total, color
		FROM orders.order_items
		WHERE order_id = ANY($1)
		ORDER BY position
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.PricePerDay,
			&item.PricingMode, &item.StartDate, &item.EndDate, &item.RentalDays, &item.ItemTotal, &item.Color)
		if err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

// UpdateStatus moves an order to status under a row lock. It returns
// (nil, nil) for unknown orders and an *domain.InvalidTransitionError when
// the move is not allowed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders.orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := domain.Transition(current, status); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders.orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}
