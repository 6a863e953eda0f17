package record

import (
	"time"

	"golang.org/x/text/unicode/norm"
)

// Normalize rewrites every text field in NFC form.
func (c *Contact) Normalize() {
	for _, s := range []*string{
		&c.Name, &c.Surname, &c.Nickname, &c.Phone, &c.Gender, &c.Relation,
		&c.Occupation, &c.Hobbies, &c.Leisure, &c.Notes,
	} {
		*s = norm.NFC.String(*s)
	}
}

// Normalize rewrites text fields in NFC form and stores the date in UTC.
func (h *Holiday) Normalize() {
	h.Title = norm.NFC.String(h.Title)
	h.Type = norm.NFC.String(h.Type)
	h.Icon = norm.NFC.String(h.Icon)
	h.Date = utc(h.Date)
}

// Normalize stores the timestamp in UTC.
func (c *CardHistoryItem) Normalize() {
	c.CreatedAt = utc(c.CreatedAt)
}

// Normalize rewrites the text in NFC form and stores the timestamp in UTC.
func (c *CongratsHistoryItem) Normalize() {
	c.Text = norm.NFC.String(c.Text)
	c.CreatedAt = utc(c.CreatedAt)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
