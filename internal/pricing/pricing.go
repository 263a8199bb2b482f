// Package pricing computes rental days and totals for cart lines. All
// amounts are euro cents.
package pricing

import "github.com/joao-fontenele/rentalflow/internal/domain"

// ProductLookup resolves catalog products by id.
type ProductLookup interface {
	Product(id string) (domain.Product, bool)
}

// RentalDays counts both the start and end day; a same-day rental is one day.
func RentalDays(start, end domain.Date) int {
	return max(1, start.DaysUntil(end)+1)
}

func LineTotal(p domain.Product, line domain.CartLine) int64 {
	if p.PricingMode == domain.PricingFixed {
		return p.UnitPrice
	}
	return p.UnitPrice * int64(line.Quantity) * int64(RentalDays(line.StartDate, line.EndDate))
}

// Price derives priced lines in cart order. Lines whose product is no longer
// in the catalog are left out.
func Price(lookup ProductLookup, lines []domain.CartLine) []domain.PricedLine {
	priced := make([]domain.PricedLine, 0, len(lines))
	for _, l := range lines {
		p, ok := lookup.Product(l.ProductID)
		if !ok {
			continue
		}
		priced = append(priced, domain.PricedLine{
			CartLine:   l,
			Product:    p,
			RentalDays: RentalDays(l.StartDate, l.EndDate),
			LineTotal:  LineTotal(p, l),
		})
	}
	return priced
}

func Subtotal(lookup ProductLookup, lines []domain.CartLine) int64 {
	return sum(Price(lookup, lines))
}

func sum(priced []domain.PricedLine) int64 {
	var total int64
	for _, l := range priced {
		total += l.LineTotal
	}
	return total
}

// Quote is the priced view of a cart shown to the customer.
type Quote struct {
	Lines     []domain.PricedLine `json:"lines"`
	Subtotal  int64               `json:"subtotal"`
	ItemCount int                 `json:"item_count"`
}

func NewQuote(lookup ProductLookup, lines []domain.CartLine) Quote {
	priced := Price(lookup, lines)
	count := 0
	for _, l := range priced {
		count += l.Quantity
	}
	return Quote{Lines: priced, Subtotal: sum(priced), ItemCount: count}
}
