package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/kindred/internal/record"
)

// createTestStore opens a fresh store file in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), LocalFileName)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testContact(id, name string) *record.Contact {
	return &record.Contact{
		ID:       id,
		Name:     name,
		Birthday: &record.Birthday{Day: 29, Month: 11, Year: 1974},
		Notification: record.Notification{
			Enabled: true,
			Offsets: record.Offsets{0, 3},
			Hour:    9,
			Minute:  30,
		},
	}
}

func testHoliday(id, title string) *record.Holiday {
	return &record.Holiday{
		ID:    id,
		Title: title,
		Date:  time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		Year:  2024,
		Type:  "international",
	}
}

func testCongrats(id, contactID, holidayID string) *record.CongratsHistoryItem {
	return &record.CongratsHistoryItem{
		ID:        id,
		CreatedAt: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC),
		Text:      "Happy day!",
		ContactID: contactID,
		HolidayID: holidayID,
	}
}
