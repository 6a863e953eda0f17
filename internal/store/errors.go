package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/kindred/internal/record"
)

var (
	// ErrNotFound indicates no record with the requested identifier exists.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a create reused an existing identifier.
	ErrAlreadyExists = errors.New("record identifier already exists")
)

// PersistenceError reports a failed store operation.
//
// Op is one of create, update, delete, get, fetch, lookup, count, save.
// Kind and ID are set when the failure concerns a specific record type or
// record. The staged operations of a failed Session.Save are kept, so the
// caller may retry or discard them.
type PersistenceError struct {
	Op   string
	Kind record.Kind
	ID   string
	Err  error
}

func (e *PersistenceError) Error() string {
	switch {
	case e.ID != "":
		return fmt.Sprintf("persistence: %s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
	case e.Kind != "":
		return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
	}
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err reports a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreOpenError reports a store file that could not be opened.
//
// Incompatible marks failures that a reset of this one file can cure:
// a schema version newer than supported, or a file that is not a SQLite
// database. See OpenWithRecovery.
type StoreOpenError struct {
	Path         string
	Reason       string
	Incompatible bool
	Err          error
}

func (e *StoreOpenError) Error() string {
	if e.Incompatible {
		return fmt.Sprintf("open store %s: incompatible store file: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("open store %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *StoreOpenError) Unwrap() error {
	return e.Err
}

// IsIncompatible returns true if err is a StoreOpenError that a reset can cure.
func IsIncompatible(err error) bool {
	var oe *StoreOpenError
	if errors.As(err, &oe) {
		return oe.Incompatible
	}
	return false
}

// translateWriteError maps SQLite constraint failures onto store sentinels.
func translateWriteError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		if se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
		}
	}
	return err
}
