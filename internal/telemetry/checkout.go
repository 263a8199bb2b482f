package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CheckoutMetrics records checkout attempts by outcome. A nil
// *CheckoutMetrics discards everything.
type CheckoutMetrics struct {
	attempts   metric.Int64Counter
	duration   metric.Float64Histogram
	orderTotal metric.Int64Histogram
}

func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	attempts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("Checkout duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	orderTotal, err := meter.Int64Histogram("checkout.order_total",
		metric.WithDescription("Order total of successful checkouts"),
		metric.WithUnit("{cent}"),
	)
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{attempts: attempts, duration: duration, orderTotal: orderTotal}, nil
}

// Record counts one attempt. total is only recorded for outcome "success".
func (m *CheckoutMetrics) Record(ctx context.Context, outcome string, elapsed time.Duration, total int64) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if outcome == "success" {
		m.orderTotal.Record(ctx, total)
	}
}
