package record

import (
	"bytes"
	"time"
)

// Record is implemented by every persisted record type.
type Record interface {
	Kind() Kind
	RecordID() string
	Validate() error
	// Clone returns a deep copy; blobs and lists are never shared.
	Clone() Record
	// Normalize rewrites text fields into their canonical form in place.
	Normalize()
}

// Notification holds the reminder settings of a contact.
type Notification struct {
	Enabled bool    `json:"enabled"         db:"notify_enabled"`
	Offsets Offsets `json:"offsets"         db:"notify_offsets"` // days before the event
	Hour    int     `json:"hour"            db:"notify_hour"`
	Minute  int     `json:"minute"          db:"notify_minute"`
}

// Contact is a person the user sends congratulations to.
type Contact struct {
	ID         string    `json:"id"                   db:"id"`
	Name       string    `json:"name,omitempty"       db:"name"`
	Surname    string    `json:"surname,omitempty"    db:"surname"`
	Nickname   string    `json:"nickname,omitempty"   db:"nickname"`
	Phone      string    `json:"phone,omitempty"      db:"phone"`
	Gender     string    `json:"gender,omitempty"     db:"gender"`
	Relation   string    `json:"relation,omitempty"   db:"relation"`
	Birthday   *Birthday `json:"birthday,omitempty"   db:"birthday"`
	Occupation string    `json:"occupation,omitempty" db:"occupation"`
	Hobbies    string    `json:"hobbies,omitempty"    db:"hobbies"`
	Leisure    string    `json:"leisure,omitempty"    db:"leisure"`
	Notes      string    `json:"notes,omitempty"      db:"notes"`
	Avatar     []byte    `json:"avatar,omitempty"     db:"avatar"`
	Notification `json:"notification"`
}

// Holiday is a dated occasion, either from the bundled calendar or user-defined.
type Holiday struct {
	ID         string    `json:"id"              db:"id"`
	Title      string    `json:"title"           db:"title"`
	Date       time.Time `json:"date"            db:"date"`
	Year       int       `json:"year,omitempty"  db:"year"`
	Type       string    `json:"type,omitempty"  db:"type"`
	Icon       string    `json:"icon,omitempty"  db:"icon"`
	IsRegional bool      `json:"is_regional"     db:"is_regional"`
	IsCustom   bool      `json:"is_custom"       db:"is_custom"`
}

// CardHistoryItem records a generated greeting card image.
type CardHistoryItem struct {
	ID        string    `json:"id"                   db:"id"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
	Image     []byte    `json:"image,omitempty"      db:"image"`
	ContactID string    `json:"contact_id,omitempty" db:"contact_id"`
	HolidayID string    `json:"holiday_id,omitempty" db:"holiday_id"`
}

// CongratsHistoryItem records a generated congratulation text.
type CongratsHistoryItem struct {
	ID        string    `json:"id"                   db:"id"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
	Text      string    `json:"text"                 db:"text"`
	ContactID string    `json:"contact_id,omitempty" db:"contact_id"`
	HolidayID string    `json:"holiday_id,omitempty" db:"holiday_id"`
}

func (c *Contact) Kind() Kind             { return KindContact }
func (h *Holiday) Kind() Kind             { return KindHoliday }
func (c *CardHistoryItem) Kind() Kind     { return KindCard }
func (c *CongratsHistoryItem) Kind() Kind { return KindCongrats }

func (c *Contact) RecordID() string             { return c.ID }
func (h *Holiday) RecordID() string             { return h.ID }
func (c *CardHistoryItem) RecordID() string     { return c.ID }
func (c *CongratsHistoryItem) RecordID() string { return c.ID }

// Clone returns a deep copy of the contact.
func (c *Contact) Clone() Record {
	out := *c
	if c.Birthday != nil {
		b := *c.Birthday
		out.Birthday = &b
	}
	out.Avatar = cloneBytes(c.Avatar)
	out.Offsets = c.Offsets.Clone()
	return &out
}

// Clone returns a copy of the holiday.
func (h *Holiday) Clone() Record {
	out := *h
	return &out
}

// Clone returns a deep copy of the card history item.
func (c *CardHistoryItem) Clone() Record {
	out := *c
	out.Image = cloneBytes(c.Image)
	return &out
}

// Clone returns a copy of the congrats history item.
func (c *CongratsHistoryItem) Clone() Record {
	out := *c
	return &out
}

func (c *CardHistoryItem) Owners() (string, string)     { return c.ContactID, c.HolidayID }
func (c *CongratsHistoryItem) Owners() (string, string) { return c.ContactID, c.HolidayID }

func (c *CardHistoryItem) SetOwners(contactID, holidayID string) {
	c.ContactID, c.HolidayID = contactID, holidayID
}

func (c *CongratsHistoryItem) SetOwners(contactID, holidayID string) {
	c.ContactID, c.HolidayID = contactID, holidayID
}

// Equal reports whether two records of the same kind hold identical values.
// Timestamps compare by instant, not by location.
func Equal(a, b Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Contact:
		y := b.(*Contact)
		return x.ID == y.ID && x.Name == y.Name && x.Surname == y.Surname &&
			x.Nickname == y.Nickname && x.Phone == y.Phone && x.Gender == y.Gender &&
			x.Relation == y.Relation && x.Birthday.Equal(y.Birthday) &&
			x.Occupation == y.Occupation && x.Hobbies == y.Hobbies &&
			x.Leisure == y.Leisure && x.Notes == y.Notes &&
			bytes.Equal(x.Avatar, y.Avatar) && x.Enabled == y.Enabled &&
			x.Offsets.Equal(y.Offsets) && x.Hour == y.Hour && x.Minute == y.Minute
	case *Holiday:
		y := b.(*Holiday)
		return x.ID == y.ID && x.Title == y.Title && x.Date.Equal(y.Date) &&
			x.Year == y.Year && x.Type == y.Type && x.Icon == y.Icon &&
			x.IsRegional == y.IsRegional && x.IsCustom == y.IsCustom
	case *CardHistoryItem:
		y := b.(*CardHistoryItem)
		return x.ID == y.ID && x.CreatedAt.Equal(y.CreatedAt) &&
			bytes.Equal(x.Image, y.Image) && x.ContactID == y.ContactID &&
			x.HolidayID == y.HolidayID
	case *CongratsHistoryItem:
		y := b.(*CongratsHistoryItem)
		return x.ID == y.ID && x.CreatedAt.Equal(y.CreatedAt) && x.Text == y.Text &&
			x.ContactID == y.ContactID && x.HolidayID == y.HolidayID
	}
	return false
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
