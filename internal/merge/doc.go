// Package merge reconciles two versions of the same record.
//
// A Policy takes the source and target versions of one identifier and returns
// the reconciled target. Policies are looked up by record kind in a Table; the
// Default table holds one entry per record kind.
//
// Field rules, applied uniformly:
//
//	text, blob       target wins if non-empty, otherwise source
//	timestamp        later value wins, zero counts as unset
//	notification     enabled is OR, longer offset list wins (tie keeps target),
//	                 time of day from an enabled side, the earlier one
//	                 when both are enabled, the target's when neither is
//	flag             true wins
//	holiday year     target wins if non-zero
//	birthday         target wins if set
//	owner links      copied only if the target has no owner at all
//
// Policies never enforce cross-record invariants. Dangling owner links are
// repaired by the migration pass after every kind has been merged.
package merge
