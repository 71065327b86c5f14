package cart

import (
	"testing"

	"storefront/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int64, price int64) Product {
	return Product{ID: id, Name: "p", Price: decimal.NewFromInt(price)}
}

func TestRepeatedAddsAggregate(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Add(product(1, 30), 1))
	}

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, c.Count())
	assert.True(t, decimal.NewFromInt(150).Equal(c.Total()))
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Add(product(1, 10), 0), ErrInvalidQuantity)
	assert.Equal(t, 0, c.Len())
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product(1, 100), 2))
	require.NoError(t, c.Add(product(2, 50), 1))
	require.NoError(t, c.Add(product(3, 5), 1))

	require.NoError(t, c.SetQuantity(2, 4))
	require.NoError(t, c.SetQuantity(3, 0))
	assert.ErrorIs(t, c.SetQuantity(9, 1), ErrNotInCart)

	assert.Equal(t, []Line{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 4}}, c.OrderLines())

	c.Remove(1)
	assert.Equal(t, []Line{{ProductID: 2, Quantity: 4}}, c.OrderLines())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.True(t, decimal.Zero.Equal(c.Total()))
}

func TestSnapshotOf(t *testing.T) {
	p := &models.Product{
		ID:        7,
		Name:      "Lamp",
		Slug:      "lamp",
		Price:     decimal.NewFromInt(12),
		ImageURLs: pq.StringArray{"a.png", "b.png"},
	}
	snap := SnapshotOf(p)
	assert.Equal(t, "a.png", snap.Image)
	assert.Equal(t, int64(7), snap.ID)
}

func TestBuyNowQuantity(t *testing.T) {
	assert.Equal(t, 1, BuyNowQuantity(0))
	assert.Equal(t, 4, BuyNowQuantity(4))
	assert.Equal(t, BuyNowMax, BuyNowQuantity(25))
}
