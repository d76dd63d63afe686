package update

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/ValentinKolb/dSeg/lib/batch"
	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/profile"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalkthrough(t *testing.T, now time.Time) (*walkthrough, store.IStore, *bytes.Buffer) {
	t.Helper()
	s := lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
	out := &bytes.Buffer{}
	return &walkthrough{
		ctx:   context.Background(),
		s:     batch.New(s, db.NewKey("profiles", UserKey), profile.Bin),
		out:   out,
		pause: func() {},
		rng:   rand.New(rand.NewSource(42)),
		now:   now,
	}, s, out
}

func TestWalkthroughOnEmptyProfile(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC)
	w, s, out := newWalkthrough(t, now)

	require.NoError(t, w.upsertSegment())
	assert.Contains(t, out.String(), "Segment value before: []")
	assert.Contains(t, out.String(), "Number of segments after upsert: 1")

	require.NoError(t, w.putSegments())
	require.NoError(t, w.extendSegment())

	rec, ok, err := s.Get(db.NewKey("profiles", UserKey))
	require.NoError(t, err)
	require.True(t, ok)
	e, found := rec.Bins[profile.Bin].Get(w.segmentID)
	require.True(t, found)
	assert.Equal(t, w.segmentHour+5, e.Hour)

	require.NoError(t, w.notExpiringToday())
	require.NoError(t, w.countRange())

	out.Reset()
	require.NoError(t, w.trimStale())
	// every segment expires in 30 days, nothing is stale
	size := rec.Bins[profile.Bin].Len()
	assert.Contains(t, out.String(), "had 0 stale segments trimmed")
	assert.Contains(t, out.String(), "remaining")
	assert.Greater(t, size, 1)
}

func TestTrimStaleRemovesExpiredSegments(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC)
	w, s, out := newWalkthrough(t, now)
	today := profile.HourOf(profile.StartOfDay(now))

	key := db.NewKey("profiles", UserKey)
	require.NoError(t, s.Put(key, map[string]*cdt.Map{
		profile.Bin: cdt.NewMapFrom(map[int64]cdt.Entry{
			1: cdt.NewEntry(today - 48),
			2: cdt.NewEntry(today - 1),
			3: cdt.NewEntry(today),
			4: cdt.NewEntry(today + 10),
		}),
	}))

	require.NoError(t, w.notExpiringToday())
	assert.Contains(t, out.String(), "[3 4]")

	out.Reset()
	require.NoError(t, w.trimStale())
	assert.Contains(t, out.String(), "User u1 had 2 stale segments trimmed, with 2 segments remaining")
}
