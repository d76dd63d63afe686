package trim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/profile"
	"github.com/ValentinKolb/dSeg/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimRemovesSegmentsBeforeCurrentHour(t *testing.T) {
	s := lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
	m := jobs.NewManager(s, jobs.Options{Namespace: "test"})
	defer m.Close()

	hour := profile.HourOf(time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC))
	key := db.NewKey("profiles", UserKey)
	other := db.NewKey("profiles", "u1")
	for _, k := range []db.Key{key, other} {
		require.NoError(t, s.Put(k, map[string]*cdt.Map{
			profile.Bin: cdt.NewMapFrom(map[int64]cdt.Entry{
				1: cdt.NewEntry(hour - 2),
				2: cdt.NewEntry(hour - 1),
				3: cdt.NewEntry(hour),
				4: cdt.NewEntry(hour + 5),
			}),
		}))
	}

	sweeper := jobs.NewSweeper(s, m, "profiles", profile.Bin)
	sweeper.PollInterval = 5 * time.Millisecond
	out := &bytes.Buffer{}

	require.NoError(t, trim(context.Background(), out, func() {}, sweeper, key, hour))
	assert.Contains(t, out.String(), "This user has a total of 4 segments")
	assert.Contains(t, out.String(), "Of those, a total of 2 segments should be cleaned")
	assert.Contains(t, out.String(), "[1 2]")
	assert.Contains(t, out.String(), "scanned=2 applied=2 failed=0")
	assert.Contains(t, out.String(), "This user now has a total of 2 segments")
	assert.Contains(t, out.String(), "Of those, a total of 0 segments should be cleaned")

	for _, k := range []db.Key{key, other} {
		rec, ok, err := s.Get(k)
		require.NoError(t, err)
		require.True(t, ok)
		segments := rec.Bins[profile.Bin]
		assert.Equal(t, 2, segments.Len())
		_, found := segments.Get(3)
		assert.True(t, found, "a segment expiring in the current hour is kept")
		_, found = segments.Get(4)
		assert.True(t, found)
	}
}
