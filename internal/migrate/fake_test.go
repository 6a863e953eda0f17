package migrate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// memStore is an in-memory Writer with injectable failures. Unlike
// *store.Store it does not validate, so tests can seed states the SQLite
// schema would reject.
type memStore struct {
	mu       sync.Mutex
	recs     map[record.Kind]map[string]record.Record
	pageSize int

	scanErr   error
	lookupErr error
	commitErr error
	commits   int
}

func newMemStore(recs ...record.Record) *memStore {
	m := &memStore{recs: make(map[record.Kind]map[string]record.Record), pageSize: 2}
	for _, k := range record.Kinds {
		m.recs[k] = make(map[string]record.Record)
	}
	for _, r := range recs {
		m.recs[r.Kind()][r.RecordID()] = r.Clone()
	}
	return m
}

func (m *memStore) Scan(ctx context.Context, kind record.Kind, fn func([]record.Record) error) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	all := m.sorted(kind)
	for start := 0; start < len(all); start += m.pageSize {
		end := min(start+m.pageSize, len(all))
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Lookup(ctx context.Context, kind record.Kind, ids []string) (map[string]record.Record, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]record.Record)
	for _, id := range ids {
		if r, ok := m.recs[kind][id]; ok {
			out[id] = r.Clone()
		}
	}
	return out, nil
}

func (m *memStore) Commit(ctx context.Context, b store.Batch) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	for _, r := range b.Creates {
		if _, ok := m.recs[r.Kind()][r.RecordID()]; ok {
			return fmt.Errorf("create %s: %w", r.RecordID(), store.ErrAlreadyExists)
		}
		m.recs[r.Kind()][r.RecordID()] = r.Clone()
	}
	for _, r := range b.Updates {
		if _, ok := m.recs[r.Kind()][r.RecordID()]; !ok {
			return fmt.Errorf("update %s: %w", r.RecordID(), store.ErrNotFound)
		}
		m.recs[r.Kind()][r.RecordID()] = r.Clone()
	}
	return nil
}

func (m *memStore) sorted(kind record.Kind) []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, 0, len(m.recs[kind]))
	for _, r := range m.recs[kind] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out
}

func (m *memStore) get(kind record.Kind, id string) record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[kind][id]
}

// dump returns every record, grouped by kind and ordered by identifier.
func (m *memStore) dump() map[record.Kind][]record.Record {
	out := make(map[record.Kind][]record.Record)
	for _, k := range record.Kinds {
		out[k] = m.sorted(k)
	}
	return out
}
