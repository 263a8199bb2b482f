package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Customer struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"required,min=10,max=20"`
	Address string `json:"address" validate:"required,min=5,max=500"`
}

// OrderItem is a frozen copy of a priced cart line taken at checkout. Later
// catalog changes never touch it.
type OrderItem struct {
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	PricePerDay int64       `json:"price_per_day"`
	PricingMode PricingMode `json:"pricing_mode"`
	StartDate   Date        `json:"start_date"`
	EndDate     Date        `json:"end_date"`
	RentalDays  int         `json:"rental_days"`
	ItemTotal   int64       `json:"item_total"`
	Color       string      `json:"color,omitempty"`
}

type Order struct {
	ID                string      `json:"id"`
	CustomerName      string      `json:"customer_name"`
	CustomerEmail     string      `json:"customer_email"`
	CustomerPhone     string      `json:"customer_phone"`
	CustomerAddress   string      `json:"customer_address"`
	Items             []OrderItem `json:"items"`
	Subtotal          int64       `json:"subtotal"`
	TravelCost        int64       `json:"travel_cost"`
	TravelCostPending bool        `json:"travel_cost_pending"`
	Total             int64       `json:"total"`
	Status            OrderStatus `json:"status"`
	PaymentSessionID  *string     `json:"payment_session_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
