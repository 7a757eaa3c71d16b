package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kasir/internal/record"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore opens a file-backed store that is closed with the test.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kasir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func productRecord(id, name string, price, stock int64, active bool) record.Record {
	const at = "2024-03-01T09:00:00.000Z"
	return record.Record{
		"id":         id,
		"name":       name,
		"price":      price,
		"stock":      stock,
		"min_stock":  int64(0),
		"is_active":  active,
		"created_at": at,
		"updated_at": at,
	}
}

// schemaNames runs a query returning one name column, such as the column
// or index names of a table.
func schemaNames(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()
	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	return schemaNames(t, db, "SELECT name FROM pragma_table_info(?)", table)
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	return schemaNames(t, db, "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
}
