package merge

import (
	"errors"
	"fmt"

	"github.com/roach88/kindred/internal/record"
)

// Policy reconciles src into dst. It returns a new record and never mutates
// its arguments. changed reports whether the result differs from dst.
type Policy func(src, dst record.Record) (merged record.Record, changed bool, err error)

// Table maps each record kind to its policy.
type Table map[record.Kind]Policy

// ErrNoPolicy is returned when a kind has no registered policy.
var ErrNoPolicy = errors.New("no merge policy registered")

// MismatchError reports a policy called with records it cannot reconcile.
type MismatchError struct {
	Kind     record.Kind
	Src, Dst string // identifiers
	Reason   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("merge %s: cannot reconcile %s into %s: %s", e.Kind, e.Src, e.Dst, e.Reason)
}

// IsMismatch returns true if err is a MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// Default returns the policy table for every record kind.
func Default() Table {
	return Table{
		record.KindContact:  Typed(mergeContact),
		record.KindHoliday:  Typed(mergeHoliday),
		record.KindCard:     Typed(mergeCard),
		record.KindCongrats: Typed(mergeCongrats),
	}
}

// Merge reconciles src into dst using the policy for dst's kind.
func (t Table) Merge(src, dst record.Record) (record.Record, bool, error) {
	if src == nil || dst == nil {
		return nil, false, fmt.Errorf("merge: nil record")
	}
	p, ok := t[dst.Kind()]
	if !ok {
		return nil, false, fmt.Errorf("merge %s: %w", dst.Kind(), ErrNoPolicy)
	}
	return p(src, dst)
}

// Typed adapts a field-level merge over a concrete record type into a Policy.
// fn receives a deep copy of dst to modify in place.
func Typed[T record.Record](fn func(src, dst T)) Policy {
	return func(src, dst record.Record) (record.Record, bool, error) {
		s, ok := src.(T)
		if !ok {
			return nil, false, &MismatchError{Kind: dst.Kind(), Src: src.RecordID(), Dst: dst.RecordID(),
				Reason: fmt.Sprintf("source is %s", src.Kind())}
		}
		d, ok := dst.(T)
		if !ok {
			return nil, false, &MismatchError{Kind: dst.Kind(), Src: src.RecordID(), Dst: dst.RecordID(),
				Reason: "unexpected target type"}
		}
		if s.RecordID() != d.RecordID() {
			return nil, false, &MismatchError{Kind: dst.Kind(), Src: src.RecordID(), Dst: dst.RecordID(),
				Reason: "identifiers differ"}
		}

		out := d.Clone().(T)
		fn(s, out)
		return out, !record.Equal(d, out), nil
	}
}

func mergeContact(src, dst *record.Contact) {
	Text(&dst.Name, src.Name)
	Text(&dst.Surname, src.Surname)
	Text(&dst.Nickname, src.Nickname)
	Text(&dst.Phone, src.Phone)
	Text(&dst.Gender, src.Gender)
	Text(&dst.Relation, src.Relation)
	Text(&dst.Occupation, src.Occupation)
	Text(&dst.Hobbies, src.Hobbies)
	Text(&dst.Leisure, src.Leisure)
	Text(&dst.Notes, src.Notes)
	Blob(&dst.Avatar, src.Avatar)
	Birthday(&dst.Birthday, src.Birthday)
	Notification(&dst.Notification, src.Notification)
}

func mergeHoliday(src, dst *record.Holiday) {
	Text(&dst.Title, src.Title)
	Later(&dst.Date, src.Date)
	NonZero(&dst.Year, src.Year)
	Text(&dst.Type, src.Type)
	Text(&dst.Icon, src.Icon)
	Flag(&dst.IsRegional, src.IsRegional)
	Flag(&dst.IsCustom, src.IsCustom)
}

func mergeCard(src, dst *record.CardHistoryItem) {
	Later(&dst.CreatedAt, src.CreatedAt)
	Blob(&dst.Image, src.Image)
	Owners(dst, src)
}

func mergeCongrats(src, dst *record.CongratsHistoryItem) {
	Later(&dst.CreatedAt, src.CreatedAt)
	Text(&dst.Text, src.Text)
	Owners(dst, src)
}
