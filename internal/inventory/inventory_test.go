package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/store"
	"github.com/roach88/kasir/internal/testutil"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, products ...domain.Product) (*Service, *store.Store, *testutil.DeterministicClock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, p := range products {
		require.NoError(t, store.PutAs(context.Background(), st, domain.CollectionProducts, p))
	}
	clock := testutil.NewDeterministicClock(testNow)
	svc := NewService(st,
		WithClock(clock),
		WithIDGenerator(testutil.NewSequenceGenerator("inv")),
		WithLocation(time.UTC),
	)
	return svc, st, clock
}

func product(id string, stock, minStock int64) domain.Product {
	return domain.Product{
		ID: id, Name: "Product " + id, Price: 1000,
		Stock: stock, MinStock: minStock, IsActive: true,
		CreatedAt: "2024-03-01T00:00:00.000Z", UpdatedAt: "2024-03-01T00:00:00.000Z",
	}
}

func stockOf(t *testing.T, st *store.Store, id string) int64 {
	t.Helper()
	p, ok, err := store.GetAs[domain.Product](context.Background(), st, domain.CollectionProducts, id)
	require.NoError(t, err)
	require.True(t, ok)
	return p.Stock
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name      string
		adj       Adjustment
		wantAfter int64
		wantDelta int64
	}{
		{"in", Adjustment{Type: domain.AdjustmentIn, Quantity: 5}, 15, 5},
		{"in ignores sign", Adjustment{Type: domain.AdjustmentIn, Quantity: -5}, 15, 5},
		{"out", Adjustment{Type: domain.AdjustmentOut, Quantity: 4}, 6, -4},
		{"out floors at zero", Adjustment{Type: domain.AdjustmentOut, Quantity: 25}, 0, -10},
		{"opname up", Adjustment{Type: domain.AdjustmentOpname, Quantity: 12}, 12, 2},
		{"opname to zero", Adjustment{Type: domain.AdjustmentOpname, Quantity: 0}, 0, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _ := setup(t, product("p1", 10, 2))
			ctx := context.Background()

			tt.adj.ProductID = "p1"
			tt.adj.CreatedBy = "c-alice"
			got, err := svc.Adjust(ctx, tt.adj)
			require.NoError(t, err)

			assert.Equal(t, int64(10), got.StockBefore)
			assert.Equal(t, tt.wantAfter, got.StockAfter)
			assert.Equal(t, tt.wantDelta, got.Quantity)
			assert.Equal(t, defaultReasons[tt.adj.Type], got.Reason)
			assert.Equal(t, tt.wantAfter, stockOf(t, st, "p1"))

			ops, err := st.PendingOperations(ctx, time.Time{})
			require.NoError(t, err)
			require.Len(t, ops, 2)
			assert.Equal(t, domain.CollectionStockAdjustments, ops[0].Table)
			assert.Equal(t, domain.CollectionProducts, ops[1].Table)
			assert.Equal(t, domain.ActionUpdate, ops[1].Action)
		})
	}
}

func TestAdjust_Validation(t *testing.T) {
	svc, st, _ := setup(t, product("p1", 10, 2))
	ctx := context.Background()

	tests := []struct {
		adj      Adjustment
		wantCode string
	}{
		{Adjustment{ProductID: "p1", Type: "transfer", Quantity: 1}, domain.CodeInvalidInput},
		{Adjustment{ProductID: "p1", Type: domain.AdjustmentIn, Quantity: 0}, domain.CodeInvalidAmount},
		{Adjustment{ProductID: "p1", Type: domain.AdjustmentOpname, Quantity: -1}, domain.CodeInvalidAmount},
		{Adjustment{ProductID: "ghost", Type: domain.AdjustmentIn, Quantity: 1}, domain.CodeNotFound},
	}
	for _, tt := range tests {
		_, err := svc.Adjust(ctx, tt.adj)
		assert.Equal(t, tt.wantCode, domain.CodeOf(err), "%+v", tt.adj)
	}

	assert.Equal(t, int64(10), stockOf(t, st, "p1"))
	n, err := st.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdjust_RaisesLowStockOncePerDay(t *testing.T) {
	svc, _, clock := setup(t, product("p1", 10, 5))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Adjust(ctx, Adjustment{ProductID: "p1", Type: domain.AdjustmentOut, Quantity: 3})
		require.NoError(t, err)
	}
	unread, err := svc.Unread(ctx)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, domain.NotificationLowStock, unread[0].Type)
	assert.Equal(t, "p1", unread[0].Data["product_id"])
	assert.Equal(t, "Product p1 has 4 left (minimum 5)", unread[0].Message)

	clock.Advance(24 * time.Hour)
	_, err = svc.Adjust(ctx, Adjustment{ProductID: "p1", Type: domain.AdjustmentOut, Quantity: 1})
	require.NoError(t, err)

	unread, err = svc.Unread(ctx)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func TestLowStockAndCheck(t *testing.T) {
	inactive := product("p4", 0, 5)
	inactive.IsActive = false
	svc, _, _ := setup(t,
		product("p1", 10, 5),
		product("p2", 5, 5),
		product("p3", 0, 0),
		inactive,
	)
	ctx := context.Background()

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "p2", low[0].ID)
	assert.Equal(t, "p3", low[1].ID)

	created, err := svc.CheckLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = svc.CheckLowStock(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestNotifications(t *testing.T) {
	svc, _, clock := setup(t, product("p1", 0, 1), product("p2", 0, 1))
	ctx := context.Background()

	_, err := svc.CheckLowStock(ctx)
	require.NoError(t, err)
	clock.Advance(time.Minute)

	recent, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	require.NoError(t, svc.MarkRead(ctx, recent[0].ID))
	unread, err := svc.Unread(ctx)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	n, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	unread, err = svc.Unread(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)

	require.NoError(t, svc.DeleteNotification(ctx, recent[0].ID))
	require.NoError(t, svc.DeleteNotification(ctx, recent[0].ID))
	all, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.True(t, domain.IsNotFound(svc.MarkRead(ctx, "ghost")))
}

func TestHistory(t *testing.T) {
	svc, _, clock := setup(t, product("p1", 10, 0), product("p2", 10, 0))
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p1"} {
		_, err := svc.Adjust(ctx, Adjustment{ProductID: id, Type: domain.AdjustmentIn, Quantity: 1})
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	hist, err := svc.History(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(12), hist[0].StockAfter)
	assert.Equal(t, int64(11), hist[1].StockAfter)
	all, err := svc.History(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
