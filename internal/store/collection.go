package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
)

// batchSize is the number of rows fetched per round trip by Query.
const batchSize = 256

// Accessor is the record and queue surface shared by *Store and *Tx.
// Components accept an Accessor so the same code runs standalone or inside
// a caller's transaction.
type Accessor interface {
	Get(ctx context.Context, collection, id string) (record.Record, bool, error)
	Put(ctx context.Context, collection string, rec record.Record) error
	Update(ctx context.Context, collection, id string, fields record.Record) error
	UpdateIf(ctx context.Context, collection, id string, guard Equals, fields record.Record) (bool, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) iter.Seq2[record.Record, error]
	Count(ctx context.Context, q Query) (int, error)
	BulkPut(ctx context.Context, collection string, recs []record.Record) error
	Clear(ctx context.Context, collection string) error
	Enqueue(ctx context.Context, table string, action domain.Action, data record.Record, at time.Time) (int64, error)
}

var (
	_ Accessor = (*Store)(nil)
	_ Accessor = (*Tx)(nil)
)

// Get returns the record with the given id. A missing record is reported
// with ok=false and a nil error.
func (o ops) Get(ctx context.Context, collection, id string) (record.Record, bool, error) {
	if err := checkCollection(collection); err != nil {
		return nil, false, err
	}

	var data string
	err := o.q.QueryRowContext(ctx,
		"SELECT data FROM "+collection+" WHERE id = ?", id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	rec, err := record.Parse([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return rec, true, nil
}

// Put inserts or fully replaces a record. The id is taken from rec["id"].
func (o ops) Put(ctx context.Context, collection string, rec record.Record) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	id := rec.ID()
	if id == "" {
		return domain.NewValidationError(domain.CodeInvalidInput, "record has no id").With("collection", collection)
	}

	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}

	_, err = o.q.ExecContext(ctx,
		"INSERT INTO "+collection+" (id, data) VALUES (?, ?) "+
			"ON CONFLICT(id) DO UPDATE SET data = excluded.data",
		id, string(data),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges fields into an existing record (RFC 7396 merge patch: a nil
// value removes the attribute). Returns a NOT_FOUND domain error if the id
// does not exist.
func (o ops) Update(ctx context.Context, collection, id string, fields record.Record) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if v, ok := fields["id"]; ok && v != id {
		return domain.NewValidationError(domain.CodeInvalidInput, "update cannot change record id").
			With("collection", collection).With("id", id)
	}

	patch, err := fields.Marshal()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	res, err := o.q.ExecContext(ctx,
		"UPDATE "+collection+" SET data = json_patch(data, ?) WHERE id = ?",
		string(patch), id,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return domain.NewNotFoundError(domain.CodeNotFound, "record not found").
			With("collection", collection).With("id", id)
	}
	return nil
}

// UpdateIf merges fields into the record only while guard still holds on the
// stored data, as a single statement. Reports whether the record was
// updated; false means the record is missing or the guard no longer matches.
func (o ops) UpdateIf(ctx context.Context, collection, id string, guard Equals, fields record.Record) (bool, error) {
	if err := checkCollection(collection); err != nil {
		return false, err
	}
	cond, params, err := compilePredicate(guard)
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	patch, err := fields.Marshal()
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	args := append([]any{string(patch), id}, params...)
	res, err := o.q.ExecContext(ctx,
		"UPDATE "+collection+" SET data = json_patch(data, ?) WHERE id = ? AND "+cond,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return n > 0, nil
}

// Delete removes a record. Deleting a missing id is not an error.
func (o ops) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM "+collection+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query returns a lazy, finite sequence of matching records in the query's
// order. Iterating again re-runs the query. Rows are read in batches and the
// connection is released between batches, so the loop body may call other
// store methods.
func (o ops) Query(ctx context.Context, q Query) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		sqlText, params, err := compileQuery(q)
		if err != nil {
			yield(nil, err)
			return
		}

		emitted := 0
		for offset := 0; ; offset += batchSize {
			batch, err := o.fetchBatch(ctx, sqlText, params, offset)
			if err != nil {
				yield(nil, fmt.Errorf("query %s: %w", q.Collection, err))
				return
			}
			for _, rec := range batch {
				if q.Match != nil && !q.Match(rec) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
				emitted++
				if q.Limit > 0 && emitted >= q.Limit {
					return
				}
			}
			if len(batch) < batchSize {
				return
			}
		}
	}
}

func (o ops) fetchBatch(ctx context.Context, sqlText string, params []any, offset int) ([]record.Record, error) {
	args := append(append([]any{}, params...), batchSize, offset)
	rows, err := o.q.QueryContext(ctx, sqlText+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batch := make([]record.Record, 0, batchSize)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := record.Parse([]byte(data))
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, rows.Err()
}

// Count returns the number of records matching q. Limit is ignored.
func (o ops) Count(ctx context.Context, q Query) (int, error) {
	if q.Match != nil {
		q.Limit = 0
		n := 0
		for _, err := range o.Query(ctx, q) {
			if err != nil {
				return 0, err
			}
			n++
		}
		return n, nil
	}

	sqlText, params, err := compileCount(q)
	if err != nil {
		return 0, err
	}
	var n int
	if err := o.q.QueryRowContext(ctx, sqlText, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Collection, err)
	}
	return n, nil
}

// BulkPut upserts every record. Inside a Tx the batch is all-or-nothing.
func (o ops) BulkPut(ctx context.Context, collection string, recs []record.Record) error {
	for _, rec := range recs {
		if err := o.Put(ctx, collection, rec); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes every record in the collection.
func (o ops) Clear(ctx context.Context, collection string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM "+collection); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}

// ClearAll deletes every record, queued operation and dead letter.
func (o ops) ClearAll(ctx context.Context) error {
	for _, c := range domain.Collections {
		if err := o.Clear(ctx, c); err != nil {
			return err
		}
	}
	for _, table := range []string{"pending_operations", "dead_letters"} {
		if _, err := o.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
