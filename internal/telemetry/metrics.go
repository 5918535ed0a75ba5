// Package telemetry records storefront business metrics with OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/donation"
)

const meterName = "github.com/xenking/storefront-checkout"

var (
	_ cart.Observer     = (*Metrics)(nil)
	_ checkout.Observer = (*Metrics)(nil)
)

// Metrics implements the cart and checkout observers.
type Metrics struct {
	cartDuration  metric.Float64Histogram
	orders        metric.Int64Counter
	notifications metric.Int64Counter
}

// New registers the instruments on mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	cartDuration, err := meter.Float64Histogram("cart.operation.duration",
		metric.WithDescription("Duration of cart operations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cart.operation.duration")
	}
	orders, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Submitted orders"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkout.orders")
	}
	notifications, err := meter.Int64Counter("donation.notifications",
		metric.WithDescription("Donation notifications by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "donation.notifications")
	}

	return &Metrics{
		cartDuration:  cartDuration,
		orders:        orders,
		notifications: notifications,
	}, nil
}

// ObserveCartOperation records the duration of one cart operation.
func (m *Metrics) ObserveCartOperation(ctx context.Context, op string, elapsed time.Duration) {
	m.cartDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("operation", op)),
	)
}

// ObserveOrder counts a submitted order.
func (m *Metrics) ObserveOrder(ctx context.Context, o *checkout.Order) {
	m.orders.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("donated", o.Donated),
		attribute.String("status", string(o.Status)),
	))
}

// ObserveDonation is a donation.Dispatcher hook counting outcomes.
func (m *Metrics) ObserveDonation(ctx context.Context, res donation.Result) {
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(res.Outcome)),
	))
}
