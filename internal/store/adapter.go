package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/kindred/internal/record"
)

// Predicate filters records during Fetch. A nil predicate keeps everything.
type Predicate func(record.Record) bool

// Batch groups records to insert and records to overwrite in one save.
type Batch struct {
	Creates []record.Record
	Updates []record.Record
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Creates) + len(b.Updates)
}

// Create inserts one record and saves immediately.
func (s *Store) Create(ctx context.Context, r record.Record) error {
	ss := s.NewSession()
	if err := ss.Create(r); err != nil {
		return err
	}
	return ss.Save(ctx)
}

// Update overwrites one record and saves immediately.
func (s *Store) Update(ctx context.Context, r record.Record) error {
	ss := s.NewSession()
	if err := ss.Update(r); err != nil {
		return err
	}
	return ss.Save(ctx)
}

// Delete removes one record and saves immediately.
func (s *Store) Delete(ctx context.Context, kind record.Kind, id string) error {
	ss := s.NewSession()
	if err := ss.Delete(kind, id); err != nil {
		return err
	}
	return ss.Save(ctx)
}

// Commit applies a batch through one session. An empty batch is a no-op.
func (s *Store) Commit(ctx context.Context, b Batch) error {
	if b.Len() == 0 {
		return nil
	}
	ss := s.NewSession()
	for _, r := range b.Creates {
		if err := ss.Create(r); err != nil {
			return err
		}
	}
	for _, r := range b.Updates {
		if err := ss.Update(r); err != nil {
			return err
		}
	}
	return ss.Save(ctx)
}

// Get returns the record with the given identifier.
func (s *Store) Get(ctx context.Context, kind record.Kind, id string) (record.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Kind: kind, ID: id, Err: err}
	}

	recs, err := t.sel(ctx, s.db, t.selectSQL+" WHERE id = ?", id)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Kind: kind, ID: id, Err: err}
	}
	if len(recs) == 0 {
		return nil, &PersistenceError{Op: "get", Kind: kind, ID: id, Err: ErrNotFound}
	}
	return recs[0], nil
}

// Scan streams every record of a kind to fn, one page at a time, ordered by
// identifier. Each page is fully read before fn runs, so fn may query or
// write the same store.
func (s *Store) Scan(ctx context.Context, kind record.Kind, fn func(page []record.Record) error) error {
	t, err := tableFor(kind)
	if err != nil {
		return &PersistenceError{Op: "fetch", Kind: kind, Err: err}
	}

	query := t.selectSQL + " WHERE id > ? ORDER BY id LIMIT ?"
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := t.sel(ctx, s.db, query, after, s.pageSize)
		if err != nil {
			return &PersistenceError{Op: "fetch", Kind: kind, Err: err}
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < s.pageSize {
			return nil
		}
		after = page[len(page)-1].RecordID()
	}
}

// Fetch returns every record of a kind accepted by pred, ordered by identifier.
// Reads are paged; only matching records are retained.
func (s *Store) Fetch(ctx context.Context, kind record.Kind, pred Predicate) ([]record.Record, error) {
	out := []record.Record{}
	err := s.Scan(ctx, kind, func(page []record.Record) error {
		for _, r := range page {
			if pred == nil || pred(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLimit is Fetch that stops after limit matches. limit <= 0 means no limit.
func (s *Store) FetchLimit(ctx context.Context, kind record.Kind, pred Predicate, limit int) ([]record.Record, error) {
	if limit <= 0 {
		return s.Fetch(ctx, kind, pred)
	}
	out := []record.Record{}
	err := s.Scan(ctx, kind, func(page []record.Record) error {
		for _, r := range page {
			if pred == nil || pred(r) {
				out = append(out, r)
				if len(out) == limit {
					return errStopScan
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return out, nil
}

var errStopScan = errors.New("stop scan")

// Lookup returns the records among ids that exist, keyed by identifier.
// Identifiers are queried in chunks of the page size.
func (s *Store) Lookup(ctx context.Context, kind record.Kind, ids []string) (map[string]record.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup", Kind: kind, Err: err}
	}

	found := make(map[string]record.Record, len(ids))
	for start := 0; start < len(ids); start += s.pageSize {
		end := min(start+s.pageSize, len(ids))

		query, args, err := sqlx.In(t.selectSQL+" WHERE id IN (?)", ids[start:end])
		if err != nil {
			return nil, &PersistenceError{Op: "lookup", Kind: kind, Err: err}
		}
		recs, err := t.sel(ctx, s.db, s.db.Rebind(query), args...)
		if err != nil {
			return nil, &PersistenceError{Op: "lookup", Kind: kind, Err: err}
		}
		for _, r := range recs {
			found[r.RecordID()] = r
		}
	}
	return found, nil
}

// Count returns the number of records of a kind.
func (s *Store) Count(ctx context.Context, kind record.Kind) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, &PersistenceError{Op: "count", Kind: kind, Err: err}
	}

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+string(t.kind)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, &PersistenceError{Op: "count", Kind: kind, Err: err}
	}
	return n, nil
}
