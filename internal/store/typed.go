package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
)

// GetAs reads a record and decodes it into T.
func GetAs[T any](ctx context.Context, a Accessor, collection, id string) (T, bool, error) {
	var zero T
	rec, ok, err := a.Get(ctx, collection, id)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := record.Decode[T](rec)
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return v, true, nil
}

// PutAs encodes v (a domain struct with an "id" field) and upserts it.
func PutAs(ctx context.Context, a Accessor, collection string, v any) error {
	rec, err := record.From(v)
	if err != nil {
		return fmt.Errorf("put %s: %w", collection, err)
	}
	return a.Put(ctx, collection, rec)
}

// CollectAs runs q and decodes every result into T. Returns an empty slice
// (not nil) when nothing matches.
func CollectAs[T any](ctx context.Context, a Accessor, q Query) ([]T, error) {
	out := make([]T, 0)
	for rec, err := range a.Query(ctx, q) {
		if err != nil {
			return nil, err
		}
		v, err := record.Decode[T](rec)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FirstAs returns the first result of q decoded into T.
func FirstAs[T any](ctx context.Context, a Accessor, q Query) (T, bool, error) {
	q.Limit = 1
	items, err := CollectAs[T](ctx, a, q)
	if err != nil || len(items) == 0 {
		var zero T
		return zero, false, err
	}
	return items[0], true, nil
}

// ProductByBarcode returns the product with the given barcode, preferring
// active products.
func ProductByBarcode(ctx context.Context, a Accessor, barcode string) (domain.Product, bool, error) {
	return FirstAs[domain.Product](ctx, a, Query{
		Collection: domain.CollectionProducts,
		Where:      []Predicate{Equals{Field: "barcode", Value: barcode}},
		OrderBy:    "is_active",
		Desc:       true,
	})
}

// DiscountByCode returns the discount with the given (already upper-cased)
// code regardless of eligibility.
func DiscountByCode(ctx context.Context, a Accessor, code string) (domain.Discount, bool, error) {
	return FirstAs[domain.Discount](ctx, a, Query{
		Collection: domain.CollectionDiscounts,
		Where:      []Predicate{Equals{Field: "code", Value: code}},
	})
}

// OpenShifts returns open shifts, newest first. An empty cashierID returns
// open shifts of every cashier.
func OpenShifts(ctx context.Context, a Accessor, cashierID string) ([]domain.Shift, error) {
	where := []Predicate{Equals{Field: "status", Value: domain.ShiftOpen}}
	if cashierID != "" {
		where = append(where, Equals{Field: "cashier_id", Value: cashierID})
	}
	return CollectAs[domain.Shift](ctx, a, Query{
		Collection: domain.CollectionShifts,
		Where:      where,
		OrderBy:    "opened_at",
		Desc:       true,
	})
}

// TransactionItems returns the lines of a transaction in id order.
func TransactionItems(ctx context.Context, a Accessor, transactionID string) ([]domain.TransactionItem, error) {
	return CollectAs[domain.TransactionItem](ctx, a, Query{
		Collection: domain.CollectionTransactionItems,
		Where:      []Predicate{Equals{Field: "transaction_id", Value: transactionID}},
	})
}

// PutAndEnqueue upserts v and queues the same record for sync under action.
// Call it on a *Tx so the write and the queue entry land together.
func PutAndEnqueue(ctx context.Context, a Accessor, collection string, action domain.Action, v any, at time.Time) (record.Record, error) {
	rec, err := record.From(v)
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", collection, err)
	}
	if err := a.Put(ctx, collection, rec); err != nil {
		return nil, err
	}
	if _, err := a.Enqueue(ctx, collection, action, rec, at); err != nil {
		return nil, err
	}
	return rec, nil
}
