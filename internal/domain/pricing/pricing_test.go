package pricing

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate_Empty(t *testing.T) {
	s := NewCalculator(DefaultRates()).Calculate(nil)

	assert.True(t, s.SubTotal.IsZero())
	assert.True(t, s.Shipping.IsZero())
	assert.True(t, s.Tax.IsZero())
	assert.True(t, s.Total.IsZero())
}

func TestCalculate_ShippingPerLine(t *testing.T) {
	s := NewCalculator(DefaultRates()).Calculate([]Line{
		{Quantity: 2, UnitPrice: dec("10.00")},
		{Quantity: 1, UnitPrice: dec("5.00")},
	})

	assert.True(t, dec("25.00").Equal(s.SubTotal), "subtotal %s", s.SubTotal)
	assert.True(t, dec("10.00").Equal(s.Shipping), "shipping %s", s.Shipping)
	assert.True(t, dec("1.75").Equal(s.Tax), "tax %s", s.Tax)
	assert.True(t, dec("36.75").Equal(s.Total), "total %s", s.Total)
}

func TestCalculate_RoundsHalfToEven(t *testing.T) {
	c := NewCalculator(Rates{Shipping: decimal.Zero, Tax: decimal.Zero})

	tests := []struct {
		price string
		want  string
	}{
		{price: "0.125", want: "0.12"},
		{price: "0.135", want: "0.14"},
		{price: "2.675", want: "2.68"},
		{price: "2.665", want: "2.66"},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			s := c.Calculate([]Line{{Quantity: 1, UnitPrice: dec(tt.price)}})
			assert.True(t, dec(tt.want).Equal(s.SubTotal), "got %s", s.SubTotal)
		})
	}
}

func TestCalculate_TaxRoundedIndependently(t *testing.T) {
	// 9.99 + 5.00 shipping = 14.99; tax = 0.7495 -> 0.75; total = 15.7395 -> 15.74.
	s := NewCalculator(DefaultRates()).Calculate([]Line{{Quantity: 1, UnitPrice: dec("9.99")}})

	assert.True(t, dec("0.75").Equal(s.Tax), "tax %s", s.Tax)
	assert.True(t, dec("15.74").Equal(s.Total), "total %s", s.Total)
}

func TestCalculate_SubTotalIsExactSum(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := NewCalculator(DefaultRates())

	for range 200 {
		n := rng.IntN(8)
		lines := make([]Line, n)
		want := decimal.Zero
		for i := range lines {
			qty := rng.IntN(20) + 1
			price := decimal.New(rng.Int64N(100_000), -2)
			lines[i] = Line{Quantity: qty, UnitPrice: price}
			want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}

		s := c.Calculate(lines)
		assert.True(t, want.Equal(s.SubTotal), "want %s got %s", want, s.SubTotal)
		assert.True(t, DefaultShippingRate.Mul(decimal.NewFromInt(int64(n))).Equal(s.Shipping))
	}
}
