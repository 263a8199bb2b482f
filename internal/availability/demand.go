package availability

import (
	"slices"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

// demand turns cart lines into availability requests that account for every
// line of a product at once. The lines of each product are cut into
// consecutive spans over which their combined quantity is constant, and each
// span becomes one request. Products keep the order of their first line.
func demand(lines []domain.CartLine) []Request {
	var products []string
	byProduct := map[string][]domain.CartLine{}
	for _, l := range lines {
		if _, ok := byProduct[l.ProductID]; !ok {
			products = append(products, l.ProductID)
		}
		byProduct[l.ProductID] = append(byProduct[l.ProductID], l)
	}

	var reqs []Request
	for _, id := range products {
		reqs = append(reqs, spans(id, byProduct[id])...)
	}
	return reqs
}

func spans(productID string, lines []domain.CartLine) []Request {
	// boundaries are span starts: every line start and the day after every line end
	bounds := make([]domain.Date, 0, 2*len(lines))
	for _, l := range lines {
		bounds = append(bounds, l.StartDate, l.EndDate.AddDays(1))
	}
	slices.SortFunc(bounds, func(a, b domain.Date) int { return a.Time().Compare(b.Time()) })
	bounds = slices.Compact(bounds)

	var reqs []Request
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1].AddDays(-1)

		qty := 0
		for _, l := range lines {
			if !l.StartDate.After(start) && !l.EndDate.Before(end) {
				qty += l.Quantity
			}
		}
		if qty == 0 {
			continue
		}

		if n := len(reqs); n > 0 && reqs[n-1].Quantity == qty && reqs[n-1].EndDate.AddDays(1) == start {
			reqs[n-1].EndDate = end
			continue
		}
		reqs = append(reqs, Request{ProductID: productID, StartDate: start, EndDate: end, Quantity: qty})
	}
	return reqs
}

// touching keeps the requests of productID that overlap start..end.
func touching(reqs []Request, productID string, start, end domain.Date) []Request {
	return slices.DeleteFunc(reqs, func(r Request) bool {
		return r.ProductID != productID || r.EndDate.Before(start) || r.StartDate.After(end)
	})
}
