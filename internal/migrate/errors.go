package migrate

import (
	"errors"
	"fmt"

	"github.com/roach88/kindred/internal/record"
)

// Stage names a step of a migration pass.
type Stage string

const (
	StageOwners        Stage = "owners"        // contacts and holidays
	StageHistory       Stage = "history"       // card and congrats history
	StageRelationships Stage = "relationships" // owner link repair
)

// MigrationError reports a store-level failure that aborted a pass.
// Per-record failures do not abort; they are counted in the Report.
type MigrationError struct {
	Kind  record.Kind
	Stage Stage
	Err   error
}

func (e *MigrationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("migration aborted in %s stage: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("migration aborted in %s stage (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// IsMigrationError returns true if err is a MigrationError.
func IsMigrationError(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}
