// Package payment creates hosted payment sessions and parses the payment
// provider's webhook callbacks.
package payment

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type LineItem struct {
	Name             string
	Description      string
	AmountMinorUnits int64
	Quantity         int64
}

type SessionRequest struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	Lines         []LineItem
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID          string
	RedirectURL string
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// OrderLines turns a persisted order into charge lines: one per item with
// the item total as amount and quantity 1, plus a travel line when the order
// carries a travel cost.
func OrderLines(order *domain.Order) []LineItem {
	lines := make([]LineItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		name := item.ProductName
		if item.Color != "" {
			name = fmt.Sprintf("%s (%s)", name, item.Color)
		}

		days := "days"
		if item.RentalDays == 1 {
			days = "day"
		}

		lines = append(lines, LineItem{
			Name:             name,
			Description:      fmt.Sprintf("%dx, %s to %s (%d %s)", item.Quantity, item.StartDate, item.EndDate, item.RentalDays, days),
			AmountMinorUnits: item.ItemTotal,
			Quantity:         1,
		})
	}

	if order.TravelCost > 0 {
		lines = append(lines, LineItem{
			Name:             "Travel cost",
			Description:      "Delivery and pickup",
			AmountMinorUnits: order.TravelCost,
			Quantity:         1,
		})
	}
	return lines
}
