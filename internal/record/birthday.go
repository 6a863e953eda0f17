package record

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// leapYear anchors year-less birthdays so Feb 29 stays representable.
const leapYear = 2000

// Birthday is a calendar day with an optional year. Year 0 means unknown.
type Birthday struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year,omitempty"`
}

// ParseBirthday accepts the vCard date forms YYYY-MM-DD, YYYYMMDD, --MM-DD and --MMDD.
func ParseBirthday(s string) (Birthday, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Birthday{Day: t.Day(), Month: int(t.Month()), Year: t.Year()}, nil
		}
	}
	for _, layout := range []string{"--01-02", "--0102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Birthday{Day: t.Day(), Month: int(t.Month())}, nil
		}
	}
	return Birthday{}, fmt.Errorf("unable to parse birthday %q", s)
}

// String renders the birthday in vCard date form.
func (b Birthday) String() string {
	if b.Year == 0 {
		return fmt.Sprintf("--%02d-%02d", b.Month, b.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
}

// Validate checks that day and month form a real calendar date.
func (b Birthday) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return fmt.Errorf("birthday month %d out of range", b.Month)
	}
	year := b.Year
	if year == 0 {
		year = leapYear
	}
	if year < 0 {
		return fmt.Errorf("birthday year %d out of range", b.Year)
	}
	t := time.Date(year, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
	if b.Day < 1 || t.Day() != b.Day {
		return fmt.Errorf("birthday day %d out of range for month %d", b.Day, b.Month)
	}
	return nil
}

// Equal reports whether two optional birthdays are the same day.
func (b *Birthday) Equal(o *Birthday) bool {
	if b == nil || o == nil {
		return b == o
	}
	return *b == *o
}

// Value stores the birthday as vCard date text.
func (b Birthday) Value() (driver.Value, error) {
	return b.String(), nil
}

// Scan reads vCard date text.
func (b *Birthday) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan birthday: unsupported type %T", src)
	}
	parsed, err := ParseBirthday(s)
	if err != nil {
		return fmt.Errorf("scan birthday: %w", err)
	}
	*b = parsed
	return nil
}
