package domain

// CartLine is one reservable unit in a session cart.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	Color     string `json:"color,omitempty"`
}

// LineKey identifies a cart line. Adding a line with an existing key merges
// quantities instead of appending.
type LineKey struct {
	ProductID string
	StartDate Date
	EndDate   Date
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, StartDate: l.StartDate, EndDate: l.EndDate}
}

// PricedLine is derived from a CartLine and its Product; it is recomputed on
// every read and never stored.
type PricedLine struct {
	CartLine
	Product    Product `json:"product"`
	RentalDays int     `json:"rental_days"`
	LineTotal  int64   `json:"line_total"`
}
