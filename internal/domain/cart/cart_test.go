package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddSameProductTwice(t *testing.T) {
	c := New("owner", nil)
	now := time.Now()

	c.Add(5, decimal.RequireFromString("9.99"), now)
	it := c.Add(5, decimal.RequireFromString("9.99"), now)

	require.Len(t, c.Items(), 1)
	assert.Equal(t, 2, it.Quantity)
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, 1, c.Len())
}

func TestCart_AddKeepsInsertionOrder(t *testing.T) {
	c := New("owner", nil)
	now := time.Now()

	c.Add(3, decimal.NewFromInt(1), now)
	c.Add(1, decimal.NewFromInt(2), now)
	c.Add(3, decimal.NewFromInt(1), now)
	c.Add(2, decimal.NewFromInt(3), now)

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{items[0].ProductID, items[1].ProductID, items[2].ProductID})
	assert.Equal(t, 4, c.Count())
}

func TestCart_Remove(t *testing.T) {
	items := []Item{
		{ID: 10, OwnerKey: "owner", ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		{ID: 11, OwnerKey: "owner", ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
	}

	t.Run("decrements quantity 2 to 1", func(t *testing.T) {
		c := New("owner", items)
		it, err := c.Remove(10)
		require.NoError(t, err)
		assert.Equal(t, 1, it.Quantity)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("removes quantity 1 line", func(t *testing.T) {
		c := New("owner", items)
		it, err := c.Remove(11)
		require.NoError(t, err)
		assert.Equal(t, 0, it.Quantity)
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, 2, c.Count())
	})

	t.Run("unknown line", func(t *testing.T) {
		c := New("owner", items)
		_, err := c.Remove(99)
		require.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("source slice is not mutated", func(t *testing.T) {
		c := New("owner", items)
		_, err := c.Remove(10)
		require.NoError(t, err)
		assert.Equal(t, 2, items[0].Quantity)
	})
}

func TestCart_Lines(t *testing.T) {
	c := New("owner", []Item{
		{ID: 1, ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ID: 2, ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
	})

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("5.00").Equal(lines[1].UnitPrice))
}
