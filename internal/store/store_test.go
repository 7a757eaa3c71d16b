package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/kasir/internal/domain"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := append(append([]string{}, domain.Collections...), "pending_operations", "dead_letters")
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestSchema_QueueColumns(t *testing.T) {
	s := createTestStore(t)

	columns := tableColumns(t, s.db, "pending_operations")
	for _, col := range []string{"id", "table_name", "action", "data", "created_at", "retries", "next_attempt_at", "last_error"} {
		assert.Contains(t, columns, col, "pending_operations column")
	}
}

func TestSchema_SecondaryIndexes(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"products":     {"idx_products_barcode", "idx_products_category_id", "idx_products_is_active"},
		"transactions": {"idx_transactions_synced", "idx_transactions_created_at"},
		"shifts":       {"idx_shifts_status", "idx_shifts_open_cashier"},
		"discounts":    {"idx_discounts_code"},
	}
	for table, indexes := range expected {
		got := tableIndexes(t, s.db, table)
		for _, idx := range indexes {
			assert.Contains(t, got, idx, "%s index", table)
		}
	}
}

func TestSchema_OneOpenShiftPerCashier(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	open := func(id string) error {
		return s.Put(ctx, domain.CollectionShifts, map[string]any{
			"id": id, "cashier_id": "c-1", "status": "open",
		})
	}
	if err := open("s-1"); err != nil {
		t.Fatalf("first open shift: %v", err)
	}
	if err := open("s-2"); !IsUniqueViolation(err) {
		t.Fatalf("second open shift: got %v, want unique violation", err)
	}

	// Closing the first frees the slot.
	if err := s.Update(ctx, domain.CollectionShifts, "s-1", map[string]any{"status": "closed"}); err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if err := open("s-2"); err != nil {
		t.Fatalf("open after close: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true)); err != nil {
			return err
		}
		if _, err := tx.Enqueue(ctx, domain.CollectionProducts, domain.ActionInsert, productRecord("p-1", "Kopi", 15000, 10, true), testNow); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if _, ok, _ := s.Get(ctx, domain.CollectionProducts, "p-1"); ok {
		t.Error("product persisted despite rollback")
	}
	if n, _ := s.PendingCount(ctx); n != 0 {
		t.Errorf("pending operations = %d after rollback, want 0", n)
	}
}

func TestWithTx_Commits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.Put(ctx, domain.CollectionProducts, productRecord("p-1", "Kopi", 15000, 10, true))
	})
	if err != nil {
		t.Fatalf("WithTx() failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, domain.CollectionProducts, "p-1"); !ok {
		t.Error("product not persisted after commit")
	}
}
