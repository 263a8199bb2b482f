package domain

import "time"

const (
	TopicOrderCreated = "order.created"
	TopicOrderPaid    = "order.paid"
)

type OrderCreatedEvent struct {
	OrderID   string      `json:"order_id"`
	Total     int64       `json:"total"`
	Items     []OrderItem `json:"items"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderPaidEvent struct {
	OrderID       string      `json:"order_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items"`
	Timestamp     time.Time   `json:"timestamp"`
}
