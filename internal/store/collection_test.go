package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
)

func TestGet_MissingIsNotAnError(t *testing.T) {
	s := createTestStore(t)

	rec, ok, err := s.Get(context.Background(), domain.CollectionProducts, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestPut_UpsertReplacesWholeRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)))
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, record.Record{"id": "p-1", "name": "Teh"}))

	rec, ok, err := s.Get(ctx, domain.CollectionProducts, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.Record{"id": "p-1", "name": "Teh"}, rec)
}

func TestPut_RequiresID(t *testing.T) {
	s := createTestStore(t)
	err := s.Put(context.Background(), domain.CollectionProducts, record.Record{"name": "x"})
	assert.True(t, domain.IsValidation(err))
}

func TestPut_RejectsUnknownCollection(t *testing.T) {
	s := createTestStore(t)
	err := s.Put(context.Background(), "users; DROP TABLE products", record.Record{"id": "x"})
	assert.ErrorContains(t, err, "unknown collection")
}

func TestUpdate_MergesFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)))

	require.NoError(t, s.Update(ctx, domain.CollectionProducts, "p-1", record.Record{"stock": int64(7)}))

	p, ok, err := GetAs[domain.Product](ctx, s, domain.CollectionProducts, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.Stock)
	assert.Equal(t, "Kopi", p.Name)
	assert.Equal(t, int64(15000), p.Price)
}

func TestUpdate_NilRemovesField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := productRecord("p-1", "Kopi", 15000, 10, true)
	rec["barcode"] = "899"
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, rec))

	require.NoError(t, s.Update(ctx, domain.CollectionProducts, "p-1", record.Record{"barcode": nil}))

	got, _, err := s.Get(ctx, domain.CollectionProducts, "p-1")
	require.NoError(t, err)
	_, present := got["barcode"]
	assert.False(t, present)
}

func TestUpdate_MissingIsNotFound(t *testing.T) {
	s := createTestStore(t)
	err := s.Update(context.Background(), domain.CollectionProducts, "ghost", record.Record{"stock": int64(1)})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdate_CannotChangeID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)))

	err := s.Update(ctx, domain.CollectionProducts, "p-1", record.Record{"id": "p-2"})
	assert.True(t, domain.IsValidation(err))
}

func TestDelete_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)))

	require.NoError(t, s.Delete(ctx, domain.CollectionProducts, "p-1"))
	require.NoError(t, s.Delete(ctx, domain.CollectionProducts, "p-1"))

	_, ok, err := s.Get(ctx, domain.CollectionProducts, "p-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuery_FiltersAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BulkPut(ctx, domain.CollectionProducts, []record.Record{
		productRecord("p-3", "Roti", 8000, 5, true),
		productRecord("p-1", "Kopi", 15000, 10, true),
		productRecord("p-2", "Teh", 5000, 0, false),
	}))

	active, err := CollectAs[domain.Product](ctx, s, Query{
		Collection: domain.CollectionProducts,
		Where:      []Predicate{Equals{Field: "is_active", Value: true}},
		OrderBy:    "name",
	})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Kopi", active[0].Name)
	assert.Equal(t, "Roti", active[1].Name)

	cheap, err := CollectAs[domain.Product](ctx, s, Query{
		Collection: domain.CollectionProducts,
		Where:      []Predicate{Compare{Field: "price", Op: OpLess, Value: int64(10000)}},
		OrderBy:    "price",
		Desc:       true,
	})
	require.NoError(t, err)
	require.Len(t, cheap, 2)
	assert.Equal(t, "p-3", cheap[0].ID)
	assert.Equal(t, "p-2", cheap[1].ID)
}

func TestQuery_EmptyResultIsEmptySlice(t *testing.T) {
	s := createTestStore(t)
	got, err := CollectAs[domain.Product](context.Background(), s, Query{Collection: domain.CollectionProducts})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQuery_SpansBatchesAndIsRestartable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	total := batchSize + 10
	recs := make([]record.Record, 0, total)
	for i := 0; i < total; i++ {
		recs = append(recs, productRecord(fmt.Sprintf("p-%04d", i), "x", int64(i), 1, true))
	}
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.BulkPut(ctx, domain.CollectionProducts, recs)
	}))

	seq := s.Query(ctx, Query{Collection: domain.CollectionProducts})
	for pass := 0; pass < 2; pass++ {
		n := 0
		last := ""
		for rec, err := range seq {
			require.NoError(t, err)
			assert.Greater(t, rec.ID(), last)
			last = rec.ID()
			n++
		}
		assert.Equal(t, total, n, "pass %d", pass)
	}
}

func TestQuery_BodyMayCallStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)))

	for rec, err := range s.Query(ctx, Query{Collection: domain.CollectionProducts}) {
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, domain.CollectionProducts, rec.ID(), record.Record{"stock": int64(0)}))
	}

	p, _, err := GetAs[domain.Product](ctx, s, domain.CollectionProducts, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Stock)
}

func TestQuery_LimitAndMatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BulkPut(ctx, domain.CollectionProducts, []record.Record{
		productRecord("p-1", "Kopi Susu", 18000, 10, true),
		productRecord("p-2", "Kopi Hitam", 12000, 10, true),
		productRecord("p-3", "Teh", 5000, 10, true),
	}))

	got, err := CollectAs[domain.Product](ctx, s, Query{
		Collection: domain.CollectionProducts,
		Match: func(r record.Record) bool {
			price, _ := r.Int("price")
			return price > 10000
		},
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)

	n, err := s.Count(ctx, Query{
		Collection: domain.CollectionProducts,
		Where:      []Predicate{Contains{Field: "name", Substring: "kopi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQuery_InvalidFieldYieldsError(t *testing.T) {
	s := createTestStore(t)
	var gotErr error
	for _, err := range s.Query(context.Background(), Query{
		Collection: domain.CollectionProducts,
		Where:      []Predicate{Equals{Field: "name') OR 1=1 --", Value: "x"}},
	}) {
		gotErr = err
	}
	assert.ErrorContains(t, gotErr, "invalid field name")
}

func TestClearAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)))
	_, err := s.Enqueue(ctx, domain.CollectionProducts, domain.ActionInsert, productRecord("p-1", "Kopi", 15000, 10, true), testNow)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))

	n, err := s.Count(ctx, Query{Collection: domain.CollectionProducts})
	require.NoError(t, err)
	assert.Zero(t, n)
	pending, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestTypedLookups(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inactive := productRecord("p-old", "Kopi lama", 10000, 0, false)
	inactive["barcode"] = "899"
	active := productRecord("p-new", "Kopi", 15000, 5, true)
	active["barcode"] = "899"
	require.NoError(t, s.BulkPut(ctx, domain.CollectionProducts, []record.Record{inactive, active}))

	p, ok, err := ProductByBarcode(ctx, s, "899")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p-new", p.ID)

	require.NoError(t, PutAs(ctx, s, domain.CollectionDiscounts, domain.Discount{
		ID: "d-1", Code: "HEMAT10", Name: "Hemat", Type: domain.DiscountPercentage, Value: 10, IsActive: true,
	}))
	d, ok, err := DiscountByCode(ctx, s, "HEMAT10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d-1", d.ID)

	_, ok, err = DiscountByCode(ctx, s, "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, PutAs(ctx, s, domain.CollectionShifts, domain.Shift{
		ID: "s-1", CashierID: "c-1", Status: domain.ShiftOpen, OpenedAt: "2024-03-01T09:00:00.000Z",
	}))
	shifts, err := OpenShifts(ctx, s, "")
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	shifts, err = OpenShifts(ctx, s, "c-2")
	require.NoError(t, err)
	assert.Empty(t, shifts)
}

func TestUpdateIf_CompareAndSwap(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, PutAs(ctx, s, domain.CollectionDiscounts, domain.Discount{
		ID: "d-1", Code: "ONCE", Type: domain.DiscountFixed, Value: 1000, UsedCount: 0, IsActive: true,
	}))

	swapped, err := s.UpdateIf(ctx, domain.CollectionDiscounts, "d-1",
		Equals{Field: "used_count", Value: int64(0)}, record.Record{"used_count": int64(1)})
	require.NoError(t, err)
	assert.True(t, swapped)

	// A second writer that read used_count=0 loses.
	swapped, err = s.UpdateIf(ctx, domain.CollectionDiscounts, "d-1",
		Equals{Field: "used_count", Value: int64(0)}, record.Record{"used_count": int64(1)})
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = s.UpdateIf(ctx, domain.CollectionDiscounts, "ghost",
		Equals{Field: "used_count", Value: int64(0)}, record.Record{"used_count": int64(1)})
	require.NoError(t, err)
	assert.False(t, swapped)

	d, _, err := GetAs[domain.Discount](ctx, s, domain.CollectionDiscounts, "d-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.UsedCount)
}
