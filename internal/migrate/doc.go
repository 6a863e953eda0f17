// Package migrate reconciles one record store into another.
//
// A pass visits every record kind in dependency order. Contacts and holidays
// run first and concurrently, then the two history kinds, then a sweep that
// repairs history owner links left dangling in the target. Records present
// only in the source are copied; records present on both sides are merged
// with the merge policy table. Nothing is deleted from the target.
//
// A pass is idempotent: rerunning it against the reconciled target changes
// nothing. A failed pass may leave the target partially written; rerunning it
// resumes by identifier.
package migrate
