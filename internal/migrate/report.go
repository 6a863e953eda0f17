package migrate

import (
	"github.com/roach88/kindred/internal/record"
)

// KindReport counts what a pass did with one record kind.
type KindReport struct {
	Scanned   int `json:"scanned"`
	Created   int `json:"created"`
	Merged    int `json:"merged"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	// Cleared counts history items of this kind written without their
	// holiday link because they also referenced a contact.
	Cleared int `json:"cleared,omitempty"`
}

// Report summarizes a migration pass.
type Report struct {
	Kinds map[record.Kind]*KindReport `json:"kinds"`

	// Restored counts owner records re-copied from the source because a
	// history item in the target pointed at them.
	Restored int `json:"restored"`
	// Orphaned counts owner links that resolve in neither store.
	Orphaned int `json:"orphaned"`
	// Cleared counts history items whose holiday link was dropped because
	// they also referenced a contact, whether on copy or in the final sweep.
	Cleared int `json:"cleared"`

	repaired int // sweep updates not counted in any KindReport
}

func newReport() *Report {
	r := &Report{Kinds: make(map[record.Kind]*KindReport, len(record.Kinds))}
	for _, k := range record.Kinds {
		r.Kinds[k] = &KindReport{}
	}
	return r
}

// Kind returns the counts of one kind, never nil.
func (r *Report) Kind(k record.Kind) KindReport {
	if kr, ok := r.Kinds[k]; ok {
		return *kr
	}
	return KindReport{}
}

// Failed returns the number of records that could not be migrated.
func (r *Report) Failed() int {
	n := 0
	for _, kr := range r.Kinds {
		n += kr.Failed
	}
	return n
}

// Written returns the number of records created or merged in the target.
func (r *Report) Written() int {
	n := r.Restored + r.repaired
	for _, kr := range r.Kinds {
		n += kr.Created + kr.Merged
	}
	return n
}
