// Package pricing derives the cost breakdown of a cart or order.
package pricing

import "github.com/shopspring/decimal"

// Default rates used when the configuration does not override them.
var (
	DefaultShippingRate = decimal.RequireFromString("5.00")
	DefaultTaxRate      = decimal.RequireFromString("0.05")
)

// Line is a single priced line item.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Summary is the cost breakdown of a set of lines. Every field is rounded to
// two decimal places using round-half-to-even.
type Summary struct {
	SubTotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Rates holds the flat shipping rate (charged per distinct line, not per
// unit) and the tax rate applied to subtotal plus shipping.
type Rates struct {
	Shipping decimal.Decimal
	Tax      decimal.Decimal
}

// DefaultRates returns the storefront's standard rates.
func DefaultRates() Rates {
	return Rates{Shipping: DefaultShippingRate, Tax: DefaultTaxRate}
}

// Calculator computes cost summaries for a fixed set of rates.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the rates the calculator was configured with.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Calculate returns the cost summary for lines. Components are computed
// unrounded and each one is rounded independently at the end, so Total is
// not necessarily the sum of the rounded parts.
func (c *Calculator) Calculate(lines []Line) Summary {
	subTotal := decimal.Zero
	for _, l := range lines {
		subTotal = subTotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	shipping := c.rates.Shipping.Mul(decimal.NewFromInt(int64(len(lines))))
	tax := subTotal.Add(shipping).Mul(c.rates.Tax)
	total := subTotal.Add(shipping).Add(tax)

	return Summary{
		SubTotal: Round(subTotal),
		Shipping: Round(shipping),
		Tax:      Round(tax),
		Total:    Round(total),
	}
}

// Round rounds a monetary amount to cents with banker's rounding.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
