// Package donation computes round-up charitable donations and reports them to
// an external donation service on a best-effort basis.
package donation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/pricing"
)

// Default bounds of a donation amount.
var (
	DefaultMin = decimal.RequireFromString("0.10")
	DefaultMax = decimal.RequireFromString("10000.00")
)

// Donation is the notification sent to the donation service. It is never
// persisted locally.
type Donation struct {
	SourceRetailer string
	CustomerID     string
	OrderID        string
	Currency       string
	DateTime       time.Time
	Amount         decimal.Decimal
}

// Notifier delivers a donation to the external service.
type Notifier interface {
	Notify(ctx context.Context, d Donation) error
}

// NotificationError reports a failed delivery. StatusCode is zero when no
// response was received.
type NotificationError struct {
	StatusCode int
	Err        error
}

func (e *NotificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("donation notification failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("donation notification failed: %v", e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Calculator derives the round-up donation for an order total.
type Calculator struct {
	min decimal.Decimal
	max decimal.Decimal
}

// NewCalculator creates a Calculator. Amounts below minAmount are raised to it;
// amounts at or above maxAmount are not sent at all.
func NewCalculator(minAmount, maxAmount decimal.Decimal) *Calculator {
	return &Calculator{min: minAmount, max: maxAmount}
}

// Compute returns ceil(total) - total, raised to the minimum. The total is
// rounded to cents (half-to-even) first so that values such as 19.999999
// behave like 20.00.
func (c *Calculator) Compute(total decimal.Decimal) decimal.Decimal {
	t := pricing.Round(total)
	amount := t.Ceil().Sub(t)
	if amount.LessThan(c.min) {
		return c.min
	}
	return amount
}

// Allowed reports whether amount may be sent. Amounts at or above the cap are
// suppressed rather than clamped.
func (c *Calculator) Allowed(amount decimal.Decimal) bool {
	return amount.LessThan(c.max)
}

// Reference formats the order reference sent to the donation service.
func Reference(retailer string, orderID int64) string {
	return fmt.Sprintf("%s_%d", retailer, orderID)
}
