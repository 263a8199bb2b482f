package domain

type Availability struct {
	Available    bool `json:"available"`
	MaxAvailable int  `json:"max_available"`
}

type StockLevel struct {
	ProductID string `json:"product_id"`
	Total     int    `json:"total"`
}

// Booking holds stock for one order item over an inclusive date range.
type Booking struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	Quantity  int    `json:"quantity"`
}
