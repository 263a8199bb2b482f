package catalog

import "github.com/joao-fontenele/rentalflow/internal/domain"

// Catalog is an immutable, in-memory view of the product table. A cart session
// always prices against one Catalog value.
type Catalog struct {
	byID  map[string]domain.Product
	order []string
}

func New(products ...domain.Product) *Catalog {
	c := &Catalog{byID: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; !dup {
			c.order = append(c.order, p.ID)
		}
		c.byID[p.ID] = p
	}
	return c
}

func (c *Catalog) Product(id string) (domain.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Visible returns the products exposed to customers, in load order.
func (c *Catalog) Visible() []domain.Product {
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		if p := c.byID[id]; p.Visible {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.byID)
}
