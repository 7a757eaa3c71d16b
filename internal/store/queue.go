package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
)

// Enqueue appends an outbound operation to the sync queue and returns its
// id. The operation is due immediately.
func (o ops) Enqueue(ctx context.Context, table string, action domain.Action, data record.Record, at time.Time) (int64, error) {
	if err := checkCollection(table); err != nil {
		return 0, err
	}
	if !action.Valid() {
		return 0, fmt.Errorf("enqueue %s: invalid action %q", table, action)
	}
	payload, err := data.Marshal()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", table, err)
	}

	ts := domain.FormatTime(at)
	res, err := o.q.ExecContext(ctx, `
		INSERT INTO pending_operations (table_name, action, data, created_at, retries, next_attempt_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, table, string(action), string(payload), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", table, err)
	}
	return id, nil
}

// PendingOperations returns queued operations due at or before due, oldest
// first. A zero due returns every operation. Returns an empty slice (not nil)
// if there are none.
//
// With a due time, an entry is held back while an older entry for the same
// record is still backing off: entries are full snapshots, so delivering a
// newer one first would let the retry overwrite it at the remote.
func (o ops) PendingOperations(ctx context.Context, due time.Time) ([]domain.PendingOperation, error) {
	query := `
		SELECT id, table_name, action, data, created_at, retries, next_attempt_at, last_error
		FROM pending_operations p`
	var args []any
	if !due.IsZero() {
		at := domain.FormatTime(due)
		query += `
		WHERE p.next_attempt_at <= ?
		AND NOT EXISTS (
			SELECT 1 FROM pending_operations older
			WHERE older.table_name = p.table_name
			AND json_extract(older.data, '$.id') = json_extract(p.data, '$.id')
			AND older.id < p.id
			AND older.next_attempt_at > ?
		)`
		args = append(args, at, at)
	}
	query += " ORDER BY p.id ASC"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending operations: %w", err)
	}
	defer rows.Close()

	pending := make([]domain.PendingOperation, 0)
	for rows.Next() {
		var (
			op     domain.PendingOperation
			action string
			data   string
		)
		if err := rows.Scan(&op.ID, &op.Table, &action, &data, &op.CreatedAt, &op.Retries, &op.NextAttemptAt, &op.LastError); err != nil {
			return nil, fmt.Errorf("pending operations: %w", err)
		}
		op.Action = domain.Action(action)
		rec, err := record.Parse([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("pending operation %d: %w", op.ID, err)
		}
		op.Data = rec
		pending = append(pending, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending operations: %w", err)
	}
	return pending, nil
}

// PendingCount returns the number of queued operations.
func (o ops) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := o.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_operations").Scan(&n); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}

// HasPendingFor reports whether any queued operation targets table.
func (o ops) HasPendingFor(ctx context.Context, table string) (bool, error) {
	var n int
	err := o.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_operations WHERE table_name = ?", table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("pending for %s: %w", table, err)
	}
	return n > 0, nil
}

// IsQueued reports whether a record is referenced by a queued operation or a
// dead letter.
func (o ops) IsQueued(ctx context.Context, table, id string) (bool, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pending_operations
			 WHERE table_name = ? AND json_extract(data, '$.id') = ?) +
			(SELECT COUNT(*) FROM dead_letters
			 WHERE table_name = ? AND json_extract(data, '$.id') = ?)
	`, table, id, table, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is queued %s/%s: %w", table, id, err)
	}
	return n > 0, nil
}

// CompleteOperation removes a delivered operation. Only call after the
// remote confirmed success.
func (o ops) CompleteOperation(ctx context.Context, id int64) error {
	if _, err := o.q.ExecContext(ctx, "DELETE FROM pending_operations WHERE id = ?", id); err != nil {
		return fmt.Errorf("complete operation %d: %w", id, err)
	}
	return nil
}

// FailOperation records a failed delivery attempt and schedules the next one.
func (o ops) FailOperation(ctx context.Context, id, retries int64, next time.Time, lastErr string) error {
	_, err := o.q.ExecContext(ctx, `
		UPDATE pending_operations
		SET retries = ?, next_attempt_at = ?, last_error = ?
		WHERE id = ?
	`, retries, domain.FormatTime(next), lastErr, id)
	if err != nil {
		return fmt.Errorf("fail operation %d: %w", id, err)
	}
	return nil
}

// DeadLetter copies op to the dead letters and removes it from the queue.
// Idempotent on operation id.
func (o ops) DeadLetter(ctx context.Context, op domain.PendingOperation, lastErr string, at time.Time) error {
	payload, err := record.MarshalCanonical(op.Data)
	if err != nil {
		return fmt.Errorf("dead letter %d: %w", op.ID, err)
	}
	_, err = o.q.ExecContext(ctx, `
		INSERT INTO dead_letters (operation_id, table_name, action, data, created_at, retries, last_error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation_id) DO NOTHING
	`, op.ID, op.Table, string(op.Action), string(payload), op.CreatedAt, op.Retries, lastErr, domain.FormatTime(at))
	if err != nil {
		return fmt.Errorf("dead letter %d: %w", op.ID, err)
	}
	return o.CompleteOperation(ctx, op.ID)
}

// DeadLetters returns every dead letter, oldest first.
func (o ops) DeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT id, operation_id, table_name, action, data, created_at, retries, last_error, failed_at
		FROM dead_letters
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("dead letters: %w", err)
	}
	defer rows.Close()

	letters := make([]domain.DeadLetter, 0)
	for rows.Next() {
		var (
			dl     domain.DeadLetter
			action string
			data   string
		)
		if err := rows.Scan(&dl.ID, &dl.OperationID, &dl.Table, &action, &data, &dl.CreatedAt, &dl.Retries, &dl.LastError, &dl.FailedAt); err != nil {
			return nil, fmt.Errorf("dead letters: %w", err)
		}
		dl.Action = domain.Action(action)
		rec, err := record.Parse([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("dead letter %d: %w", dl.ID, err)
		}
		dl.Data = rec
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dead letters: %w", err)
	}
	return letters, nil
}

// RequeueDeadLetter puts a dead letter back on the queue with a fresh retry
// budget and removes it from the dead letters.
func (o ops) RequeueDeadLetter(ctx context.Context, id int64, at time.Time) (int64, error) {
	var (
		table, action, data string
	)
	err := o.q.QueryRowContext(ctx,
		"SELECT table_name, action, data FROM dead_letters WHERE id = ?", id,
	).Scan(&table, &action, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NewNotFoundError(domain.CodeNotFound, "dead letter not found").With("id", fmt.Sprint(id))
	}
	if err != nil {
		return 0, fmt.Errorf("requeue dead letter %d: %w", id, err)
	}

	rec, err := record.Parse([]byte(data))
	if err != nil {
		return 0, fmt.Errorf("requeue dead letter %d: %w", id, err)
	}
	opID, err := o.Enqueue(ctx, table, domain.Action(action), rec, at)
	if err != nil {
		return 0, err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM dead_letters WHERE id = ?", id); err != nil {
		return 0, fmt.Errorf("requeue dead letter %d: %w", id, err)
	}
	return opID, nil
}
