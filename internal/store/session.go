package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/kindred/internal/record"
)

type opType int

const (
	opCreate opType = iota + 1
	opUpdate
	opDelete
)

func (o opType) String() string {
	switch o {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// op is one staged mutation.
type op struct {
	typ  opType
	kind record.Kind
	id   string
	rec  record.Record // nil for deletes
}

// Session is a unit of work against one store.
//
// Create, Update and Delete validate and stage an operation, which marks
// the session dirty. Nothing reaches the file until Save. Records are
// cloned and normalized when staged, so callers may keep mutating theirs.
//
// Thread-safety: Session is safe for concurrent use via internal mutex.
type Session struct {
	store *Store

	mu  sync.Mutex
	ops []op
}

// NewSession starts an empty unit of work.
func (s *Store) NewSession() *Session {
	return &Session{store: s}
}

// Create stages an insert.
func (ss *Session) Create(r record.Record) error {
	return ss.stage(opCreate, r)
}

// Update stages a full-record update. Save fails with ErrNotFound if no
// record with this identifier exists.
func (ss *Session) Update(r record.Record) error {
	return ss.stage(opUpdate, r)
}

// Delete stages the removal of a record.
func (ss *Session) Delete(kind record.Kind, id string) error {
	if _, err := tableFor(kind); err != nil {
		return &PersistenceError{Op: "delete", Kind: kind, ID: id, Err: err}
	}
	if id == "" {
		return &PersistenceError{Op: "delete", Kind: kind, Err: record.ErrMissingID}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.ops = append(ss.ops, op{typ: opDelete, kind: kind, id: id})
	return nil
}

func (ss *Session) stage(typ opType, r record.Record) error {
	if r == nil {
		return &PersistenceError{Op: typ.String(), Err: fmt.Errorf("nil record")}
	}
	if _, err := tableFor(r.Kind()); err != nil {
		return &PersistenceError{Op: typ.String(), Kind: r.Kind(), ID: r.RecordID(), Err: err}
	}

	rec := r.Clone()
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.ops = append(ss.ops, op{typ: typ, kind: rec.Kind(), id: rec.RecordID(), rec: rec})
	return nil
}

// Dirty reports whether operations are staged.
func (ss *Session) Dirty() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.ops) > 0
}

// Len returns the number of staged operations.
func (ss *Session) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.ops)
}

// Discard drops every staged operation.
func (ss *Session) Discard() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.ops = nil
}

// Save applies every staged operation in order inside one transaction.
// On success the session is clean again. On failure nothing is applied and
// the operations stay staged.
func (ss *Session) Save(ctx context.Context) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if len(ss.ops) == 0 {
		return nil
	}

	tx, err := ss.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "save", Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	for _, o := range ss.ops {
		if err := applyOp(ctx, tx, o); err != nil {
			return &PersistenceError{Op: o.typ.String(), Kind: o.kind, ID: o.id, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "save", Err: fmt.Errorf("commit: %w", err)}
	}

	ss.ops = nil
	return nil
}

func applyOp(ctx context.Context, tx *sqlx.Tx, o op) error {
	t, err := tableFor(o.kind)
	if err != nil {
		return err
	}

	switch o.typ {
	case opCreate:
		if _, err := sqlx.NamedExecContext(ctx, tx, t.insertSQL, o.rec); err != nil {
			return translateWriteError(err)
		}
		return nil

	case opUpdate:
		res, err := sqlx.NamedExecContext(ctx, tx, t.updateSQL, o.rec)
		if err != nil {
			return translateWriteError(err)
		}
		return requireAffected(res.RowsAffected())

	case opDelete:
		res, err := tx.ExecContext(ctx, t.deleteSQL, o.id)
		if err != nil {
			return err
		}
		return requireAffected(res.RowsAffected())

	default:
		return fmt.Errorf("unknown operation %d", o.typ)
	}
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
