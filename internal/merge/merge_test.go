package merge

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kindred/internal/record"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func TestMerge_SourceFillsEmptyNameTargetKeepsEnabled(t *testing.T) {
	src := &record.Contact{ID: "A", Name: "Ann", Notification: record.Notification{Enabled: false}}
	dst := &record.Contact{ID: "A", Name: "", Notification: record.Notification{Enabled: true}}

	got, changed, err := Default().Merge(src, dst)
	require.NoError(t, err)
	assert.True(t, changed)

	c := got.(*record.Contact)
	assert.Equal(t, "Ann", c.Name)
	assert.True(t, c.Enabled)

	// Inputs are untouched.
	assert.Equal(t, "", dst.Name)
	assert.False(t, src.Enabled)
}

func TestMerge_Contact(t *testing.T) {
	src := &record.Contact{
		ID:       "c1",
		Name:     "Source",
		Surname:  "Smith",
		Phone:    "+100",
		Notes:    "from source",
		Avatar:   []byte{1},
		Birthday: &record.Birthday{Day: 2, Month: 3, Year: 1990},
		Notification: record.Notification{
			Enabled: false,
			Offsets: record.Offsets{0, 1, 7},
			Hour:    8,
			Minute:  15,
		},
	}
	dst := &record.Contact{
		ID:    "c1",
		Name:  "Target",
		Notes: "",
		Notification: record.Notification{
			Enabled: true,
			Offsets: record.Offsets{3},
			Hour:    9,
			Minute:  0,
		},
	}

	got, changed, err := Default().Merge(src, dst)
	require.NoError(t, err)
	assert.True(t, changed)

	want := &record.Contact{
		ID:       "c1",
		Name:     "Target",
		Surname:  "Smith",
		Phone:    "+100",
		Notes:    "from source",
		Avatar:   []byte{1},
		Birthday: &record.Birthday{Day: 2, Month: 3, Year: 1990},
		Notification: record.Notification{
			Enabled: true,
			Offsets: record.Offsets{0, 1, 7},
			Hour:    9,
			Minute:  0,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged contact mismatch (-want +got):\n%s", diff)
	}

	// Copied slices and pointers are not shared with the source.
	c := got.(*record.Contact)
	c.Avatar[0] = 9
	c.Offsets[0] = 9
	c.Birthday.Day = 9
	assert.Equal(t, byte(1), src.Avatar[0])
	assert.Equal(t, 0, src.Offsets[0])
	assert.Equal(t, 2, src.Birthday.Day)
}

func TestMerge_NotificationTies(t *testing.T) {
	src := record.Notification{Offsets: record.Offsets{5}, Hour: 10, Minute: 0}
	dst := record.Notification{Offsets: record.Offsets{1}, Hour: 10, Minute: 0}

	Notification(&dst, src)
	assert.Equal(t, record.Offsets{1}, dst.Offsets, "tie keeps target")
	assert.Equal(t, 10, dst.Hour)
}

func TestMerge_NotificationTime(t *testing.T) {
	tests := []struct {
		name       string
		src, dst   record.Notification
		wantHour   int
		wantMinute int
	}{
		{
			name:     "disabled source keeps enabled target time",
			src:      record.Notification{},
			dst:      record.Notification{Enabled: true, Offsets: record.Offsets{1}, Hour: 9, Minute: 30},
			wantHour: 9, wantMinute: 30,
		},
		{
			name:     "enabled source replaces disabled target time",
			src:      record.Notification{Enabled: true, Hour: 18, Minute: 45},
			dst:      record.Notification{Hour: 7},
			wantHour: 18, wantMinute: 45,
		},
		{
			name:     "both enabled takes the earlier time",
			src:      record.Notification{Enabled: true, Hour: 8, Minute: 5},
			dst:      record.Notification{Enabled: true, Hour: 8, Minute: 30},
			wantHour: 8, wantMinute: 5,
		},
		{
			name:     "neither enabled keeps target time",
			src:      record.Notification{Hour: 6},
			dst:      record.Notification{Hour: 11, Minute: 15},
			wantHour: 11, wantMinute: 15,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := tt.dst
			Notification(&dst, tt.src)
			assert.Equal(t, tt.wantHour, dst.Hour)
			assert.Equal(t, tt.wantMinute, dst.Minute)
		})
	}
}

func TestMerge_DisabledSourceKeepsReminder(t *testing.T) {
	src := &record.Contact{ID: "A", Name: "Ann"}
	dst := &record.Contact{ID: "A", Notification: record.Notification{
		Enabled: true, Offsets: record.Offsets{1}, Hour: 9, Minute: 30,
	}}

	got, changed, err := Default().Merge(src, dst)
	require.NoError(t, err)
	assert.True(t, changed, "name is filled in")

	c := got.(*record.Contact)
	assert.True(t, c.Enabled)
	assert.Equal(t, 9, c.Hour)
	assert.Equal(t, 30, c.Minute)
	assert.Equal(t, record.Offsets{1}, c.Offsets)
}

func TestMerge_Holiday(t *testing.T) {
	src := &record.Holiday{ID: "x1", Title: "Src", Date: feb1, Year: 2023, Icon: "star", IsRegional: true}
	dst := &record.Holiday{ID: "x1", Title: "Dst", Date: jan1, Year: 0, IsCustom: true}

	got, changed, err := Default().Merge(src, dst)
	require.NoError(t, err)
	assert.True(t, changed)

	want := &record.Holiday{ID: "x1", Title: "Dst", Date: feb1, Year: 2023, Icon: "star", IsRegional: true, IsCustom: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged holiday mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_ZeroTimestampIsUnset(t *testing.T) {
	src := &record.CongratsHistoryItem{ID: "h1"}
	dst := &record.CongratsHistoryItem{ID: "h1", CreatedAt: jan1, Text: "hi"}

	got, changed, err := Default().Merge(src, dst)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, jan1, got.(*record.CongratsHistoryItem).CreatedAt)
}

func TestMerge_OwnersStayExclusive(t *testing.T) {
	tests := []struct {
		name         string
		src, dst     *record.CardHistoryItem
		wantContact  string
		wantHoliday  string
		wantModified bool
	}{
		{
			name:         "target without owner takes source contact",
			src:          &record.CardHistoryItem{ID: "h", ContactID: "c1"},
			dst:          &record.CardHistoryItem{ID: "h"},
			wantContact:  "c1",
			wantModified: true,
		},
		{
			name:        "target holiday is not joined by source contact",
			src:         &record.CardHistoryItem{ID: "h", ContactID: "c1"},
			dst:         &record.CardHistoryItem{ID: "h", HolidayID: "x1"},
			wantHoliday: "x1",
		},
		{
			name:        "target contact is kept over source contact",
			src:         &record.CardHistoryItem{ID: "h", ContactID: "c2"},
			dst:         &record.CardHistoryItem{ID: "h", ContactID: "c1"},
			wantContact: "c1",
		},
		{
			name:         "corrupt source with both owners yields contact only",
			src:          &record.CardHistoryItem{ID: "h", ContactID: "c1", HolidayID: "x1"},
			dst:          &record.CardHistoryItem{ID: "h"},
			wantContact:  "c1",
			wantModified: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := Default().Merge(tt.src, tt.dst)
			require.NoError(t, err)
			card := got.(*record.CardHistoryItem)
			assert.Equal(t, tt.wantContact, card.ContactID)
			assert.Equal(t, tt.wantHoliday, card.HolidayID)
			assert.Equal(t, tt.wantModified, changed)
			assert.NoError(t, card.Validate())
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	src := &record.Contact{ID: "c1", Name: "Ann", Avatar: []byte{1, 2},
		Notification: record.Notification{Enabled: true, Offsets: record.Offsets{1, 2}, Hour: 7}}
	dst := &record.Contact{ID: "c1", Surname: "Lee", Notification: record.Notification{Hour: 12}}

	first, changed, err := Default().Merge(src, dst)
	require.NoError(t, err)
	require.True(t, changed)

	second, changed, err := Default().Merge(src, first)
	require.NoError(t, err)
	assert.False(t, changed)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second merge changed the record (-first +second):\n%s", diff)
	}
}

func TestMerge_Mismatch(t *testing.T) {
	_, _, err := Default().Merge(&record.Holiday{ID: "x1"}, &record.Contact{ID: "x1"})
	require.Error(t, err)
	assert.True(t, IsMismatch(err))

	_, _, err = Default().Merge(&record.Contact{ID: "a"}, &record.Contact{ID: "b"})
	assert.True(t, IsMismatch(err))

	_, _, err = Table{}.Merge(&record.Contact{ID: "a"}, &record.Contact{ID: "a"})
	assert.ErrorIs(t, err, ErrNoPolicy)
}

func TestDefault_CoversEveryKind(t *testing.T) {
	table := Default()
	for _, k := range record.Kinds {
		assert.Contains(t, table, k)
	}
}
