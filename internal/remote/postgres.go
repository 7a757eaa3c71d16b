package remote

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/syncer"
)

var _ syncer.Remote = (*Postgres)(nil)

// TablePrefix is prepended to collection names on the Postgres side.
const TablePrefix = "kasir_"

// Postgres writes queued operations straight into a Postgres database, one
// jsonb document table per collection.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates any missing tables.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := NewPostgres(db)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the document tables. Safe to run repeatedly.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, c := range domain.Collections {
		if _, err := p.db.ExecContext(ctx, createTableSQL(c)); err != nil {
			return fmt.Errorf("migrate %s: %w", c, err)
		}
	}
	return nil
}

func tableName(collection string) (string, error) {
	if err := checkTable(collection); err != nil {
		return "", err
	}
	return TablePrefix + collection, nil
}

func createTableSQL(collection string) string {
	return "CREATE TABLE IF NOT EXISTS " + TablePrefix + collection + ` (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
}

func upsertSQL(table string) string {
	return "INSERT INTO " + table + ` (id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
}

// Insert stores rec, replacing any row with the same id.
func (p *Postgres) Insert(ctx context.Context, table string, rec record.Record) error {
	return p.Upsert(ctx, table, rec)
}

// Upsert stores rec, replacing any row with the same id.
func (p *Postgres) Upsert(ctx context.Context, table string, rec record.Record) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: record has no id", table)
	}
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	if _, err := p.db.ExecContext(ctx, upsertSQL(name), id, string(data)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	return nil
}

// Delete removes a row. Deleting a missing row succeeds.
func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "DELETE FROM "+name+" WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// FetchProducts returns the active products by name.
func (p *Postgres) FetchProducts(ctx context.Context) ([]record.Record, error) {
	return p.list(ctx, `SELECT data FROM `+TablePrefix+domain.CollectionProducts+`
		WHERE (data->>'is_active')::boolean
		ORDER BY data->>'name', id`)
}

// FetchCategories returns every category ordered by sort_order.
func (p *Postgres) FetchCategories(ctx context.Context) ([]record.Record, error) {
	return p.list(ctx, `SELECT data FROM `+TablePrefix+domain.CollectionCategories+`
		ORDER BY (data->>'sort_order')::bigint, id`)
}

func (p *Postgres) list(ctx context.Context, query string) ([]record.Record, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer rows.Close()

	recs := make([]record.Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		rec, err := record.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return recs, nil
}
