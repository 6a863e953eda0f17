package migrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

var when = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func quietEngine() *Engine {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func openStore(t *testing.T, dir string, role store.Role) *store.Store {
	t.Helper()
	s, err := store.OpenRole(dir, role, store.WithPageSize(2))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, recs ...record.Record) {
	t.Helper()
	require.NoError(t, s.Commit(context.Background(), store.Batch{Creates: recs}))
}

func TestRun_AnnScenario(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	local := openStore(t, dir, store.RoleLocal)
	remote := openStore(t, dir, store.RoleRemote)

	seed(t, local, &record.Contact{ID: "A", Name: "Ann", Notification: record.Notification{Enabled: false}})
	seed(t, remote, &record.Contact{ID: "A", Name: "", Notification: record.Notification{Enabled: true}})

	rep, err := quietEngine().Run(ctx, local, remote)
	require.NoError(t, err)
	assert.Equal(t, KindReport{Scanned: 1, Merged: 1}, rep.Kind(record.KindContact))

	got, err := remote.Get(ctx, record.KindContact, "A")
	require.NoError(t, err)
	c := got.(*record.Contact)
	assert.Equal(t, "Ann", c.Name)
	assert.True(t, c.Enabled)
}

func TestRun_NoDataLossAndIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	local := openStore(t, dir, store.RoleLocal)
	remote := openStore(t, dir, store.RoleRemote)

	seed(t, local,
		&record.Contact{ID: "c1", Name: "Ann", Avatar: []byte{1, 2, 3}},
		&record.Contact{ID: "c2", Name: "Bob", Birthday: &record.Birthday{Day: 1, Month: 6}},
		&record.Contact{ID: "c3", Name: "Cy"},
		&record.Holiday{ID: "x1", Title: "New Year", Date: when},
		&record.CardHistoryItem{ID: "h1", CreatedAt: when, Image: []byte{9}, ContactID: "c1"},
		&record.CongratsHistoryItem{ID: "h2", CreatedAt: when, Text: "Cheers", HolidayID: "x1"},
		&record.CongratsHistoryItem{ID: "h3", CreatedAt: when, Text: "Hi Bob", ContactID: "c2"},
	)
	seed(t, remote,
		&record.Contact{ID: "c2", Name: "Robert", Phone: "+1"},
		&record.Contact{ID: "c9", Name: "Remote only"},
	)

	rep, err := quietEngine().Run(ctx, local, remote)
	require.NoError(t, err)
	assert.Equal(t, KindReport{Scanned: 3, Created: 2, Merged: 1}, rep.Kind(record.KindContact))
	assert.Equal(t, KindReport{Scanned: 1, Created: 1}, rep.Kind(record.KindHoliday))
	assert.Equal(t, KindReport{Scanned: 1, Created: 1}, rep.Kind(record.KindCard))
	assert.Equal(t, KindReport{Scanned: 2, Created: 2}, rep.Kind(record.KindCongrats))
	assert.Zero(t, rep.Orphaned)

	// Every source record exists in the target, merged or equal.
	for _, kind := range record.Kinds {
		srcRecs, err := local.Fetch(ctx, kind, nil)
		require.NoError(t, err)
		for _, r := range srcRecs {
			_, err := remote.Get(ctx, kind, r.RecordID())
			assert.NoError(t, err, "%s %s missing from target", kind, r.RecordID())
		}
	}
	bob, err := remote.Get(ctx, record.KindContact, "c2")
	require.NoError(t, err)
	assert.Equal(t, "Robert", bob.(*record.Contact).Name)
	assert.Equal(t, &record.Birthday{Day: 1, Month: 6}, bob.(*record.Contact).Birthday)

	before := snapshot(t, remote)
	rep, err = quietEngine().Run(ctx, local, remote)
	require.NoError(t, err)
	assert.Zero(t, rep.Written(), "second pass must not write")
	assert.Equal(t, 3, rep.Kind(record.KindContact).Unchanged)
	if diff := cmp.Diff(before, snapshot(t, remote)); diff != "" {
		t.Errorf("second pass changed the target (-before +after):\n%s", diff)
	}
}

func TestRun_ExclusiveOwnership(t *testing.T) {
	ctx := context.Background()
	src := newMemStore(
		&record.CardHistoryItem{ID: "h1", ContactID: "c1"},
		&record.CongratsHistoryItem{ID: "h2", ContactID: "c1"},
		&record.Contact{ID: "c1", Name: "Ann"},
		&record.Holiday{ID: "x1", Title: "Day"},
	)
	dst := newMemStore(
		&record.CardHistoryItem{ID: "h1", HolidayID: "x1"},
		// Only reachable through a corrupt target.
		&record.CongratsHistoryItem{ID: "h9", ContactID: "c1", HolidayID: "x1"},
	)

	rep, err := quietEngine().Run(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Cleared)

	for _, kind := range []record.Kind{record.KindCard, record.KindCongrats} {
		for _, r := range dst.sorted(kind) {
			c, h := r.(record.Owned).Owners()
			assert.False(t, c != "" && h != "", "%s %s has both owners", kind, r.RecordID())
		}
	}
	assert.Equal(t, "", dst.get(record.KindCongrats, "h9").(*record.CongratsHistoryItem).HolidayID)
	assert.Equal(t, "x1", dst.get(record.KindCard, "h1").(*record.CardHistoryItem).HolidayID)
}

func TestRun_CopyDropsHolidayLinkOfContactItem(t *testing.T) {
	ctx := context.Background()
	src := newMemStore(
		&record.Contact{ID: "c1", Name: "Ann"},
		&record.Holiday{ID: "x1", Title: "Day"},
		&record.CongratsHistoryItem{ID: "h1", ContactID: "c1", HolidayID: "x1"},
	)
	dst := newMemStore()

	rep, err := quietEngine().Run(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, KindReport{Scanned: 1, Created: 1, Cleared: 1}, rep.Kind(record.KindCongrats))
	assert.Equal(t, 1, rep.Cleared)
	assert.Zero(t, rep.Failed())
	assert.Equal(t, 3, rep.Written())

	got := dst.get(record.KindCongrats, "h1").(*record.CongratsHistoryItem)
	assert.Equal(t, "c1", got.ContactID)
	assert.Empty(t, got.HolidayID)

	orig := src.get(record.KindCongrats, "h1").(*record.CongratsHistoryItem)
	assert.Equal(t, "x1", orig.HolidayID, "source is not modified")
}

func TestRun_RestoresAndCountsOrphans(t *testing.T) {
	ctx := context.Background()
	src := newMemStore(&record.Holiday{ID: "x1", Title: "Day"})
	dst := newMemStore(
		&record.CardHistoryItem{ID: "h1", HolidayID: "x1"},
		&record.CardHistoryItem{ID: "h2", ContactID: "ghost"},
	)
	// Hiding the holiday from Scan keeps it out of the owners stage, so only
	// the relationship sweep can bring it over.
	hidden := &scanHidingStore{memStore: src, hide: record.KindHoliday}

	rep, err := quietEngine().Run(ctx, hidden, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Restored)
	assert.Equal(t, 1, rep.Orphaned)
	assert.NotNil(t, dst.get(record.KindHoliday, "x1"))
	assert.Equal(t, "ghost", dst.get(record.KindCard, "h2").(*record.CardHistoryItem).ContactID,
		"orphaned links are kept")
}

// scanHidingStore hides one kind from Scan while still answering lookups.
type scanHidingStore struct {
	*memStore
	hide record.Kind
}

func (s *scanHidingStore) Scan(ctx context.Context, kind record.Kind, fn func([]record.Record) error) error {
	if kind == s.hide {
		return nil
	}
	return s.memStore.Scan(ctx, kind, fn)
}

func TestRun_PerRecordFailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	src := newMemStore(
		&record.Contact{ID: "c1", Name: "ok"},
		&record.Contact{ID: "c2", Notification: record.Notification{Hour: 30}},
	)
	dst := newMemStore()

	rep, err := quietEngine().Run(ctx, src, dst)
	require.NoError(t, err)
	assert.Equal(t, KindReport{Scanned: 2, Created: 1, Failed: 1}, rep.Kind(record.KindContact))
	assert.Equal(t, 1, rep.Failed())
	assert.Nil(t, dst.get(record.KindContact, "c2"))
}

func TestRun_StoreFailuresAbort(t *testing.T) {
	boom := errors.New("disk I/O error")
	tests := []struct {
		name  string
		setup func(src, dst *memStore)
		stage Stage
	}{
		{"scan", func(src, dst *memStore) { src.scanErr = boom }, StageOwners},
		{"lookup", func(src, dst *memStore) { dst.lookupErr = boom }, StageOwners},
		{"commit", func(src, dst *memStore) { dst.commitErr = boom }, StageOwners},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newMemStore(&record.Contact{ID: "c1", Name: "Ann"})
			dst := newMemStore()
			tt.setup(src, dst)

			rep, err := quietEngine().Run(context.Background(), src, dst)
			require.Error(t, err)
			require.NotNil(t, rep)
			assert.ErrorIs(t, err, boom)

			var me *MigrationError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.stage, me.Stage)
			assert.True(t, IsMigrationError(err))
		})
	}
}

func TestRun_DeterministicAcrossKindOrder(t *testing.T) {
	build := func() (*memStore, *memStore) {
		src := newMemStore(
			&record.Contact{ID: "c1", Name: "Ann", Notification: record.Notification{Offsets: record.Offsets{1, 2}}},
			&record.Holiday{ID: "x1", Title: "Src", Date: when, IsRegional: true},
			&record.CardHistoryItem{ID: "h1", CreatedAt: when, ContactID: "c1"},
			&record.CongratsHistoryItem{ID: "h2", CreatedAt: when.Add(time.Hour), Text: "src", HolidayID: "x1"},
		)
		dst := newMemStore(
			&record.Contact{ID: "c1", Surname: "Lee", Notification: record.Notification{Enabled: true}},
			&record.Holiday{ID: "x1", Title: "Dst", Date: when.Add(-time.Hour)},
			&record.CongratsHistoryItem{ID: "h2", CreatedAt: when},
		)
		return src, dst
	}

	src1, dst1 := build()
	_, err := quietEngine().Run(context.Background(), src1, dst1)
	require.NoError(t, err)

	saved := stages
	t.Cleanup(func() { stages = saved })
	reversed := make([]struct {
		stage Stage
		kinds []record.Kind
	}, len(saved))
	for i, st := range saved {
		reversed[i].stage = st.stage
		reversed[i].kinds = slices.Clone(st.kinds)
		slices.Reverse(reversed[i].kinds)
	}
	stages = reversed

	src2, dst2 := build()
	_, err = quietEngine().Run(context.Background(), src2, dst2)
	require.NoError(t, err)

	if diff := cmp.Diff(dst1.dump(), dst2.dump()); diff != "" {
		t.Errorf("target differs with kind order (-first +second):\n%s", diff)
	}
}

func TestRun_RealStoresFailedPassCanBeRerun(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	local := openStore(t, dir, store.RoleLocal)
	remote, err := store.Open(filepath.Join(dir, store.RemoteFileName))
	require.NoError(t, err)

	seed(t, local, &record.Contact{ID: "c1", Name: "Ann"})
	require.NoError(t, remote.Close())

	_, err = quietEngine().Run(ctx, local, remote)
	require.Error(t, err)
	assert.True(t, IsMigrationError(err))

	remote = openStore(t, dir, store.RoleRemote)
	rep, err := quietEngine().Run(ctx, local, remote)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Kind(record.KindContact).Created)
}

func snapshot(t *testing.T, s *store.Store) map[record.Kind][]record.Record {
	t.Helper()
	out := make(map[record.Kind][]record.Record)
	for _, k := range record.Kinds {
		recs, err := s.Fetch(context.Background(), k, nil)
		require.NoError(t, err)
		out[k] = recs
	}
	return out
}
