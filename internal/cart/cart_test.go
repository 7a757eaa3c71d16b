package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/domain"
)

func product(id string, price int64) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: price, IsActive: true}
}

func TestAddItem_ReAddIncrementsQuantity(t *testing.T) {
	c := New()
	p1 := product("p1", 10000)

	c.AddItem(p1)
	c.AddItem(p1)

	assert.Equal(t, []domain.CartLine{{
		ProductID: "p1", ProductName: "Product p1", Price: 10000, Quantity: 2, Subtotal: 20000,
	}}, c.Lines())
	assert.Equal(t, int64(20000), c.Subtotal())
	assert.Equal(t, int64(20000), c.Total())
}

func TestAddItem_NTimesIsOneLine(t *testing.T) {
	for _, n := range []int{1, 3, 17} {
		c := New()
		c.AddItem(product("a", 2500))
		for i := 0; i < n; i++ {
			c.AddItem(product("b", 1200))
		}
		c.UpdateItemDiscount("b", 200)

		lines := c.Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, int64(n), lines[1].Quantity)
		assert.Equal(t, int64(n)*1200-200, lines[1].Subtotal)
	}
}

func TestAddItem_KeepsInsertionOrder(t *testing.T) {
	c := New()
	c.AddItem(product("b", 1))
	c.AddItem(product("a", 1))
	c.AddItem(product("b", 1))

	lines := c.Lines()
	assert.Equal(t, "b", lines[0].ProductID)
	assert.Equal(t, "a", lines[1].ProductID)
	assert.Equal(t, int64(3), c.ItemCount())
	assert.Equal(t, 2, c.Len())
}

func TestUpdateQuantity(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 5000))

	c.UpdateQuantity("p1", 4)
	assert.Equal(t, int64(20000), c.Subtotal())

	c.UpdateQuantity("p1", 0)
	c.UpdateQuantity("p1", -3)
	c.UpdateQuantity("ghost", 9)
	assert.Equal(t, int64(4), c.Lines()[0].Quantity)
	assert.Equal(t, 1, c.Len())
}

func TestRemoveItem(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 5000))
	c.AddItem(product("p2", 7000))

	c.RemoveItem("p1")
	c.RemoveItem("ghost")

	require.Equal(t, 1, c.Len())
	assert.Equal(t, "p2", c.Lines()[0].ProductID)
	assert.Equal(t, int64(7000), c.Subtotal())
}

func TestSetDiscount_TotalNeverNegative(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 10000))

	c.SetDiscount(15000)
	assert.Equal(t, int64(15000), c.Discount())
	assert.Equal(t, int64(0), c.Total())

	for _, d := range []int64{0, 1, 9999, 10000, 10001, 1 << 40} {
		c.SetDiscount(d)
		assert.Equal(t, max(0, 10000-d), c.Total(), "discount %d", d)
		assert.GreaterOrEqual(t, c.Total(), int64(0))
	}
}

func TestSetDiscount_NegativeIgnored(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 10000))
	c.SetDiscount(1000)
	c.SetDiscount(-500)
	assert.Equal(t, int64(1000), c.Discount())

	c.UpdateItemDiscount("p1", -1)
	assert.Equal(t, int64(0), c.Lines()[0].Discount)
}

func TestClear(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 10000))
	c.SetDiscount(500)

	c.Clear()

	assert.Empty(t, c.Lines())
	assert.Zero(t, c.Discount())
	assert.Zero(t, c.Total())
}

func TestLines_ReturnsCopy(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 10000))

	lines := c.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, int64(1), c.Lines()[0].Quantity)
}

func TestSnapshotAndRestore(t *testing.T) {
	c := New()
	c.AddItem(product("p1", 10000))
	c.AddItem(product("p2", 2500))
	c.UpdateQuantity("p2", 3)
	c.SetDiscount(2000)

	snap := c.Snapshot()
	assert.Equal(t, int64(17500), snap.Subtotal)
	assert.Equal(t, int64(15500), snap.Total)

	other := New()
	other.Restore(snap.Lines, snap.Discount)
	assert.Equal(t, snap, other.Snapshot())
}

func TestRestore_NormalizesLines(t *testing.T) {
	c := New()
	c.AddItem(product("stale", 1))

	c.Restore([]domain.CartLine{
		{ProductID: "p1", Price: 1000, Quantity: 2, Subtotal: 1},
		{ProductID: "p1", Price: 1000, Quantity: 1},
		{ProductID: "p2", Price: 500, Quantity: 0},
		{ProductID: "", Price: 500, Quantity: 1},
	}, -10)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(3), lines[0].Quantity)
	assert.Equal(t, int64(3000), lines[0].Subtotal)
	assert.Zero(t, c.Discount())
}
