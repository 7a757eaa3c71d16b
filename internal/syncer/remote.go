package syncer

import (
	"context"

	"github.com/roach88/kasir/internal/record"
)

// Remote is the server-side counterpart of the local store. Insert and
// Upsert must be idempotent by the record's id.
type Remote interface {
	Insert(ctx context.Context, table string, rec record.Record) error
	Upsert(ctx context.Context, table string, rec record.Record) error
	Delete(ctx context.Context, table, id string) error

	// FetchProducts returns the active products.
	FetchProducts(ctx context.Context) ([]record.Record, error)

	// FetchCategories returns every category ordered by sort_order.
	FetchCategories(ctx context.Context) ([]record.Record, error)
}
