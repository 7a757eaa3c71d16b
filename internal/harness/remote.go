package harness

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
)

// errRemoteDown is returned by a MemoryRemote that has been told to fail.
var errRemoteDown = errors.New("remote unavailable")

// MemoryRemote is an in-process syncer.Remote. Writes are keyed by id, so
// replays are idempotent.
type MemoryRemote struct {
	mu       sync.Mutex
	tables   map[string]map[string]record.Record
	failNext int
	calls    int
}

// NewMemoryRemote creates an empty remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{tables: make(map[string]map[string]record.Record)}
}

// FailNext makes the next n calls fail.
func (m *MemoryRemote) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Len returns the number of rows in table.
func (m *MemoryRemote) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Calls returns the number of calls received, failed ones included.
func (m *MemoryRemote) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryRemote) begin() error {
	m.calls++
	if m.failNext > 0 {
		m.failNext--
		return errRemoteDown
	}
	return nil
}

// Insert implements syncer.Remote.
func (m *MemoryRemote) Insert(ctx context.Context, table string, rec record.Record) error {
	return m.Upsert(ctx, table, rec)
}

// Upsert implements syncer.Remote.
func (m *MemoryRemote) Upsert(_ context.Context, table string, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	rows := m.tables[table]
	if rows == nil {
		rows = make(map[string]record.Record)
		m.tables[table] = rows
	}
	rows[rec.ID()] = rec.Clone()
	return nil
}

// Delete implements syncer.Remote. Deleting a missing row succeeds.
func (m *MemoryRemote) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	delete(m.tables[table], id)
	return nil
}

// FetchProducts implements syncer.Remote.
func (m *MemoryRemote) FetchProducts(context.Context) ([]record.Record, error) {
	rows, err := m.fetch(domain.CollectionProducts, "name")
	if err != nil {
		return nil, err
	}
	active := rows[:0]
	for _, r := range rows {
		if r.Bool("is_active") {
			active = append(active, r)
		}
	}
	return active, nil
}

// FetchCategories implements syncer.Remote.
func (m *MemoryRemote) FetchCategories(context.Context) ([]record.Record, error) {
	return m.fetch(domain.CollectionCategories, "sort_order")
}

func (m *MemoryRemote) fetch(table, orderBy string) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if orderBy == "sort_order" {
			a, _ := out[i].Int(orderBy)
			b, _ := out[j].Int(orderBy)
			if a != b {
				return a < b
			}
		} else if a, b := out[i].String(orderBy), out[j].String(orderBy); a != b {
			return a < b
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}
