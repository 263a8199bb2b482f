// Package checkout turns a cart into a pending order with a payment session.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/rentalflow/internal/domain"
	"github.com/joao-fontenele/rentalflow/internal/payment"
	"github.com/joao-fontenele/rentalflow/internal/pricing"
	"github.com/joao-fontenele/rentalflow/internal/telemetry"
	"github.com/joao-fontenele/rentalflow/internal/travel"
)

var tracer = otel.Tracer("checkout")

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	SetPaymentSession(ctx context.Context, orderID, sessionID string) error
}

type Rechecker interface {
	Recheck(ctx context.Context, lines []domain.CartLine) error
}

type TravelEstimator interface {
	Estimate(ctx context.Context, address string) (*travel.Quote, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// TravelPolicy decides what happens when the delivery address cannot be
// geocoded.
type TravelPolicy string

const (
	// TravelBlock aborts the checkout with a *travel.GeocodeNotFoundError.
	TravelBlock TravelPolicy = "block"
	// TravelConfirmLater charges no travel cost and flags the order so staff
	// confirm it afterwards.
	TravelConfirmLater TravelPolicy = "confirm-later"
)

type Option func(*Orchestrator)

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithMetrics(m *telemetry.CheckoutMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTravelPolicy(p TravelPolicy) Option {
	return func(o *Orchestrator) { o.travelPolicy = p }
}

type Orchestrator struct {
	catalog      pricing.ProductLookup
	gate         Rechecker
	estimator    TravelEstimator
	orders       OrderStore
	gateway      payment.Gateway
	publisher    Publisher
	metrics      *telemetry.CheckoutMetrics
	validator    *validator.Validate
	travelPolicy TravelPolicy
	baseURL      string
	logger       *slog.Logger
}

// New builds an orchestrator. baseURL is the public storefront address used
// for the payment success and cancel pages.
func New(
	catalog pricing.ProductLookup,
	gate Rechecker,
	estimator TravelEstimator,
	orders OrderStore,
	gateway payment.Gateway,
	baseURL string,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		catalog:      catalog,
		gate:         gate,
		estimator:    estimator,
		orders:       orders,
		gateway:      gateway,
		validator:    newValidator(),
		travelPolicy: TravelConfirmLater,
		baseURL:      baseURL,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type Result struct {
	OrderID     string        `json:"order_id"`
	RedirectURL string        `json:"redirect_url"`
	Order       *domain.Order `json:"order"`
}

// Checkout validates the customer, rechecks availability, persists a pending
// order and opens a payment session for it. The caller clears the cart on
// success and must not submit the same cart twice concurrently.
func (o *Orchestrator) Checkout(ctx context.Context, customer domain.Customer, lines []domain.CartLine) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.Int("cart.lines", len(lines))))
	defer span.End()

	res, outcome, err := o.checkout(ctx, customer, lines)

	var total int64
	if res != nil {
		total = res.Order.Total
		span.SetAttributes(attribute.String("order.id", res.OrderID))
	}
	o.metrics.Record(ctx, outcome, time.Since(start), total)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) checkout(ctx context.Context, customer domain.Customer, lines []domain.CartLine) (*Result, string, error) {
	priced := pricing.Price(o.catalog, lines)
	if len(priced) == 0 {
		return nil, "empty", ErrEmptyCart
	}

	customer = NormalizeCustomer(customer)
	if err := o.validate(customer, priced); err != nil {
		return nil, "invalid", err
	}

	ordered := make([]domain.CartLine, len(priced))
	for i, l := range priced {
		ordered[i] = l.CartLine
	}
	if err := o.gate.Recheck(ctx, ordered); err != nil {
		availErr := &AvailabilityError{}
		if !errors.As(err, &availErr.Unavailable) {
			availErr.Err = err
		}
		o.logger.Warn("checkout availability recheck failed", "error", err)
		return nil, "unavailable", availErr
	}

	order := newOrder(customer, priced)

	quote, err := o.estimator.Estimate(ctx, customer.Address)
	switch {
	case err == nil:
		order.TravelCost = quote.Cost
	case o.travelPolicy == TravelBlock:
		return nil, "travel", err
	default:
		o.logger.Warn("travel cost left to be confirmed", "error", err)
		order.TravelCostPending = true
	}
	order.Total = order.Subtotal + order.TravelCost

	if err := o.orders.Create(ctx, order); err != nil {
		return nil, "persistence", &PersistenceError{Op: "create order", Err: err}
	}

	session, err := o.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Lines:         payment.OrderLines(order),
		SuccessURL:    o.baseURL + "/payment/success?order=" + url.QueryEscape(order.ID),
		CancelURL:     o.baseURL + "/cart",
	})
	if err != nil {
		o.logger.Error("payment session failed, order left pending", "error", err, "order_id", order.ID)
		return nil, "payment", &PaymentGatewayError{OrderID: order.ID, Err: err}
	}

	if err := o.orders.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		return nil, "persistence", &PersistenceError{Op: "store payment session", OrderID: order.ID, Err: err}
	}
	order.PaymentSessionID = &session.ID

	o.publish(ctx, order)

	o.logger.Info("checkout completed", "order_id", order.ID, "total", order.Total, "items", len(order.Items))
	return &Result{OrderID: order.ID, RedirectURL: session.RedirectURL, Order: order}, "success", nil
}

func newOrder(c domain.Customer, priced []domain.PricedLine) *domain.Order {
	now := time.Now().UTC()
	order := &domain.Order{
		CustomerName:    c.Name,
		CustomerEmail:   c.Email,
		CustomerPhone:   c.Phone,
		CustomerAddress: c.Address,
		Status:          domain.OrderStatusPending,
		Items:           make([]domain.OrderItem, 0, len(priced)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, l := range priced {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   l.ProductID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			PricePerDay: l.Product.UnitPrice,
			PricingMode: l.Product.PricingMode,
			StartDate:   l.StartDate,
			EndDate:     l.EndDate,
			RentalDays:  l.RentalDays,
			ItemTotal:   l.LineTotal,
			Color:       l.Color,
		})
		order.Subtotal += l.LineTotal
	}
	return order
}

func (o *Orchestrator) publish(ctx context.Context, order *domain.Order) {
	if o.publisher == nil {
		return
	}

	event := domain.OrderCreatedEvent{
		OrderID:   order.ID,
		Total:     order.Total,
		Items:     order.Items,
		Timestamp: order.CreatedAt,
	}
	if err := o.publisher.Publish(ctx, domain.TopicOrderCreated, order.ID, event); err != nil {
		o.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
	}
}
