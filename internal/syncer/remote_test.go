package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/kasir/internal/record"
)

var errUnavailable = errors.New("remote unavailable")

// memRemote is an in-memory Remote with upsert-by-id semantics.
type memRemote struct {
	mu     sync.Mutex
	tables map[string]map[string]record.Record
	calls  []string

	// fail, when set, decides whether a write fails. stored=true applies the
	// write before failing, simulating a lost acknowledgement.
	fail func(action, table, id string) (stored bool, err error)

	// after runs after every write.
	after func(action, table, id string)
}

func newMemRemote() *memRemote {
	return &memRemote{tables: make(map[string]map[string]record.Record)}
}

func (m *memRemote) write(action, table string, rec record.Record, del bool) error {
	id := rec.ID()
	m.mu.Lock()
	m.calls = append(m.calls, action+" "+table+"/"+id)
	var err error
	stored := true
	if m.fail != nil {
		if stored, err = m.fail(action, table, id); err == nil {
			stored = true
		}
	}
	if stored {
		if m.tables[table] == nil {
			m.tables[table] = make(map[string]record.Record)
		}
		if del {
			delete(m.tables[table], id)
		} else {
			m.tables[table][id] = rec.Clone()
		}
	}
	after := m.after
	m.mu.Unlock()

	if after != nil {
		after(action, table, id)
	}
	return err
}

func (m *memRemote) Insert(_ context.Context, table string, rec record.Record) error {
	return m.write("insert", table, rec, false)
}

func (m *memRemote) Upsert(_ context.Context, table string, rec record.Record) error {
	return m.write("update", table, rec, false)
}

func (m *memRemote) Delete(_ context.Context, table, id string) error {
	return m.write("delete", table, record.Record{"id": id}, true)
}

func (m *memRemote) FetchProducts(context.Context) ([]record.Record, error) {
	var out []record.Record
	for _, rec := range m.rows("products") {
		if rec.Bool("is_active") {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRemote) FetchCategories(context.Context) ([]record.Record, error) {
	rows := m.rows("categories")
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := rows[i].Int("sort_order")
		b, _ := rows[j].Int("sort_order")
		return a < b
	})
	return rows, nil
}

func (m *memRemote) rows(table string) []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, 0, len(m.tables[table]))
	for _, rec := range m.tables[table] {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *memRemote) get(table, id string) (record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[table][id]
	return rec.Clone(), ok
}

func (m *memRemote) count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *memRemote) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
