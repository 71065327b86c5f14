package cart

import (
	"errors"
	"sync"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// BuyNowMax is the soft quantity cap of the buy-now flow
const BuyNowMax = 10

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNotInCart       = errors.New("product not in cart")
)

// Product is the product snapshot held by a cart line
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Slug  string          `json:"slug"`
	Image string          `json:"image"`
	Price decimal.Decimal `json:"price"`
}

// SnapshotOf captures the fields a cart line needs from a catalog product
func SnapshotOf(p *models.Product) Product {
	return Product{
		ID:    p.ID,
		Name:  p.Name,
		Slug:  p.Slug,
		Image: p.PrimaryImage(),
		Price: p.Price,
	}
}

// Item is one cart line
type Item struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal is unit price * quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Line is the wire shape of an order-creation line
type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Cart is the buyer's session-local collection of candidate order lines,
// keyed by product id.
type Cart struct {
	mu    sync.Mutex
	items map[int64]*Item
	order []int64
}

// New creates an empty cart
func New() *Cart {
	return &Cart{items: make(map[int64]*Item)}
}

// Add puts qty units of p into the cart. Adding a product already in the cart
// increments its quantity instead of creating a second line.
func (c *Cart) Add(p Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[p.ID]; ok {
		it.Quantity += qty
		return nil
	}
	c.items[p.ID] = &Item{Product: p, Quantity: qty}
	c.order = append(c.order, p.ID)
	return nil
}

// SetQuantity overwrites a line's quantity; zero or less removes the line
func (c *Cart) SetQuantity(productID int64, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[productID]
	if !ok {
		return ErrNotInCart
	}
	if qty < 1 {
		c.removeLocked(productID)
		return nil
	}
	it.Quantity = qty
	return nil
}

// Remove drops a line
func (c *Cart) Remove(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(productID)
}

func (c *Cart) removeLocked(productID int64) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int64]*Item)
	c.order = nil
}

// Items returns a copy of the lines in insertion order
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

// Len is the number of distinct products
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Count is the number of units across all lines
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Total sums line subtotals
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// OrderLines converts the cart into the order-creation payload
func (c *Cart) OrderLines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		lines = append(lines, Line{ProductID: id, Quantity: c.items[id].Quantity})
	}
	return lines
}

// BuyNowQuantity clamps a buy-now quantity to [1, BuyNowMax]
func BuyNowQuantity(q int) int {
	switch {
	case q < 1:
		return 1
	case q > BuyNowMax:
		return BuyNowMax
	default:
		return q
	}
}
