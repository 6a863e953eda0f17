package merge

import (
	"time"

	"github.com/roach88/kindred/internal/record"
)

// Text keeps a non-empty target, otherwise takes the source.
func Text(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// Blob keeps a non-empty target, otherwise takes a copy of the source.
func Blob(dst *[]byte, src []byte) {
	if len(*dst) == 0 && len(src) > 0 {
		*dst = append([]byte(nil), src...)
	}
}

// Later keeps the chronologically later instant. A zero time is unset.
func Later(dst *time.Time, src time.Time) {
	if src.IsZero() {
		return
	}
	if dst.IsZero() || src.After(*dst) {
		*dst = src
	}
}

// Flag is true if either side is true.
func Flag(dst *bool, src bool) {
	*dst = *dst || src
}

// NonZero keeps a non-zero target, otherwise takes the source.
func NonZero(dst *int, src int) {
	if *dst == 0 {
		*dst = src
	}
}

// Birthday keeps a set target, otherwise takes a copy of the source.
func Birthday(dst **record.Birthday, src *record.Birthday) {
	if *dst == nil && src != nil {
		b := *src
		*dst = &b
	}
}

// Notification takes the more inclusive setting from either side: enabled
// if either is, and the longer offset list. The time of day only comes from
// an enabled side: the earlier one when both are enabled, the source's when
// only the source is, the target's otherwise. A disabled side's time is
// never configured and must not move a live reminder.
// This favours the target only on ties, unlike the text rules.
func Notification(dst *record.Notification, src record.Notification) {
	switch {
	case src.Enabled && dst.Enabled:
		if src.Hour*60+src.Minute < dst.Hour*60+dst.Minute {
			dst.Hour, dst.Minute = src.Hour, src.Minute
		}
	case src.Enabled:
		dst.Hour, dst.Minute = src.Hour, src.Minute
	}
	dst.Enabled = dst.Enabled || src.Enabled
	if len(src.Offsets) > len(dst.Offsets) {
		dst.Offsets = src.Offsets.Clone()
	}
}

// Owners copies the source's owner links only when the target has no owner,
// so a target never ends up with both a contact and a holiday.
func Owners(dst, src record.Owned) {
	dc, dh := dst.Owners()
	if dc != "" || dh != "" {
		return
	}
	sc, sh := src.Owners()
	if sc != "" && sh != "" {
		// Contact link takes precedence; matches relationship repair.
		sh = ""
	}
	dst.SetOwners(sc, sh)
}
