// Package cart holds the in-progress sale: line items keyed by product,
// a cart-level discount, and the derived subtotal and total.
//
// A Cart does no I/O and never fails. Malformed input (quantities below one,
// negative discounts, unknown product ids) is absorbed as a no-op. A Cart is
// not safe for concurrent use; each register session owns one.
package cart

import "github.com/roach88/kasir/internal/domain"

// Cart is the working set of one sale.
type Cart struct {
	lines    []domain.CartLine
	discount int64
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddItem adds one unit of p. A product already in the cart gets its
// quantity incremented instead of a second line.
func (c *Cart) AddItem(p domain.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity++
		recompute(&c.lines[i])
		return
	}
	line := domain.CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    1,
	}
	recompute(&line)
	c.lines = append(c.lines, line)
}

// UpdateQuantity sets the quantity of a line. Quantities below one are
// ignored; removal is explicit through RemoveItem.
func (c *Cart) UpdateQuantity(productID string, quantity int64) {
	if quantity < 1 {
		return
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity = quantity
		recompute(&c.lines[i])
	}
}

// UpdateItemDiscount sets the discount of a single line. Negative amounts
// are ignored.
func (c *Cart) UpdateItemDiscount(productID string, discount int64) {
	if discount < 0 {
		return
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Discount = discount
		recompute(&c.lines[i])
	}
}

// RemoveItem drops the line for productID.
func (c *Cart) RemoveItem(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// SetDiscount sets the cart-level discount in currency units. Negative
// amounts are ignored.
func (c *Cart) SetDiscount(amount int64) {
	if amount < 0 {
		return
	}
	c.discount = amount
}

// Clear empties the cart and resets the discount.
func (c *Cart) Clear() {
	c.lines = nil
	c.discount = 0
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// ItemCount returns the total number of units across all lines.
func (c *Cart) ItemCount() int64 {
	var n int64
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is the sum of the line subtotals.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, l := range c.lines {
		sum += l.Subtotal
	}
	return sum
}

// Discount returns the cart-level discount.
func (c *Cart) Discount() int64 {
	return c.discount
}

// Total is the subtotal minus the discount, never below zero.
func (c *Cart) Total() int64 {
	return max(0, c.Subtotal()-c.discount)
}

// Snapshot is an immutable view of a cart, handed to checkout and to the
// held-cart store.
type Snapshot struct {
	Lines    []domain.CartLine `json:"lines"`
	Subtotal int64             `json:"subtotal"`
	Discount int64             `json:"discount"`
	Total    int64             `json:"total"`
}

// Snapshot captures the current state.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:    c.Lines(),
		Subtotal: c.Subtotal(),
		Discount: c.discount,
		Total:    c.Total(),
	}
}

// Restore replaces the cart contents, for example when resuming a held
// sale. Lines with a quantity below one are dropped, duplicate products are
// merged, and line subtotals are recomputed.
func (c *Cart) Restore(lines []domain.CartLine, discount int64) {
	c.Clear()
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if l.Discount < 0 {
			l.Discount = 0
		}
		if i := c.index(l.ProductID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			recompute(&c.lines[i])
			continue
		}
		recompute(&l)
		c.lines = append(c.lines, l)
	}
	c.SetDiscount(discount)
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// recompute sets subtotal = quantity x price - line discount.
func recompute(l *domain.CartLine) {
	l.Subtotal = l.Quantity*l.Price - l.Discount
}
