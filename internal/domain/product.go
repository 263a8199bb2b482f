package domain

import "slices"

type PricingMode string

const (
	PricingDaily PricingMode = "daily"
	PricingFixed PricingMode = "fixed"
)

// Product is a rentable catalog entry. UnitPrice is in euro cents.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	PricingMode PricingMode `json:"pricing_mode"`
	UnitPrice   int64       `json:"unit_price"`
	Category    string      `json:"category"`
	Colors      []string    `json:"colors,omitempty"`
	Visible     bool        `json:"visible"`
}

// AcceptsColor reports whether color is a valid choice for the product.
// Products without color variants only accept an empty color.
func (p Product) AcceptsColor(color string) bool {
	if len(p.Colors) == 0 {
		return color == ""
	}
	return slices.Contains(p.Colors, color)
}
