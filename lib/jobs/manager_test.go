package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const set = "profiles"

// blockingStore holds ScanKeys until release is closed
type blockingStore struct {
	store.IStore
	started chan struct{}
	release chan struct{}
}

func (b *blockingStore) ScanKeys(set string) ([]db.Key, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return b.IStore.ScanKeys(set)
}

// deletingStore deletes a record right after the keys of its set were scanned
type deletingStore struct {
	store.IStore
	victim db.Key
}

func (d *deletingStore) ScanKeys(set string) ([]db.Key, error) {
	keys, err := d.IStore.ScanKeys(set)
	if err != nil {
		return nil, err
	}
	return keys, d.IStore.Delete(d.victim)
}

func newStore(t *testing.T, records int) store.IStore {
	t.Helper()
	s := lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
	for i := 0; i < records; i++ {
		require.NoError(t, s.Put(db.NewKey(set, fmt.Sprintf("u%d", i)), map[string]*cdt.Map{
			"u": cdt.NewMapFrom(map[int64]cdt.Entry{
				1: cdt.NewEntry(5),
				2: cdt.NewEntry(10),
				3: cdt.NewEntry(15),
			}),
		}))
	}
	return s
}

func newSweeper(s store.IStore, m IJobService) *Sweeper {
	sw := NewSweeper(s, m, set, "u")
	sw.PollInterval = 5 * time.Millisecond
	return sw
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s := newStore(t, 50)
	m := NewManager(s, Options{Namespace: "test"})
	defer m.Close()
	sw := newSweeper(s, m)

	for run := 0; run < 3; run++ {
		info, err := sw.Sweep(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, info.Status)
		assert.Equal(t, uint64(50), info.Scanned)
		assert.Equal(t, uint64(50), info.Applied)
		assert.Zero(t, info.Failed)
		assert.False(t, info.Finished.Before(info.Started))
	}

	for i := 0; i < 50; i++ {
		rec, ok, err := s.Get(db.NewKey(set, fmt.Sprintf("u%d", i)))
		require.NoError(t, err)
		require.True(t, ok)
		m := rec.Bin("u")
		assert.Equal(t, 2, m.Len())
		e, ok := m.Get(2)
		require.True(t, ok)
		assert.True(t, e.Equal(cdt.NewEntry(10)))
		_, ok = m.Get(1)
		assert.False(t, ok)
	}
}

func TestSweepSkipsRecordsDeletedAfterScan(t *testing.T) {
	victim := db.NewKey(set, "u3")
	s := &deletingStore{IStore: newStore(t, 5), victim: victim}
	m := NewManager(s, Options{})
	defer m.Close()

	info, err := newSweeper(s, m).Sweep(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, uint64(5), info.Scanned)
	assert.Equal(t, uint64(4), info.Applied)
	assert.Zero(t, info.Failed)

	ok, err := s.Has(victim)
	require.NoError(t, err)
	assert.False(t, ok, "deleted record was recreated")
}

func TestSweepWithoutExpiredKeepsGeneration(t *testing.T) {
	s := newStore(t, 2)
	m := NewManager(s, Options{})
	defer m.Close()
	key := db.NewKey(set, "u0")

	before, _, err := s.Get(key)
	require.NoError(t, err)

	// all segments expire at hour 5 or later
	info, err := newSweeper(s, m).Sweep(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Applied)

	after, _, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, before.Generation, after.Generation)
	assert.Equal(t, 3, after.Bin("u").Len())
}

func TestSweepOnlyTouchesItsSet(t *testing.T) {
	s := newStore(t, 3)
	other := db.NewKey("other", "u0")
	require.NoError(t, s.Put(other, map[string]*cdt.Map{"u": cdt.NewMapFrom(map[int64]cdt.Entry{1: cdt.NewEntry(1)})}))

	m := NewManager(s, Options{})
	defer m.Close()

	info, err := newSweeper(s, m).Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Scanned)

	rec, _, err := s.Get(other)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Bin("u").Len())
}

func TestJobFailsOnRecordErrors(t *testing.T) {
	s := newStore(t, 3)
	broken := db.NewKey(set, "broken")
	require.NoError(t, s.Put(broken, map[string]*cdt.Map{"u": cdt.NewMapFrom(map[int64]cdt.Entry{7: cdt.NewEntry(1)})}))

	m := NewManager(s, Options{})
	defer m.Close()

	// segment 1 doesn't exist in the broken record
	id, err := m.SubmitBackgroundJob(set, []cdt.Operation{cdt.Increment("u", cdt.TTLPath(1), 24)})
	require.NoError(t, err)

	info, err := newSweeper(s, m).Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, uint64(4), info.Scanned)
	assert.Equal(t, uint64(3), info.Applied)
	assert.Equal(t, uint64(1), info.Failed)
	assert.NotEmpty(t, info.Error)

	// the broken record is untouched, the others were updated
	rec, _, _ := s.Get(broken)
	e, _ := rec.Bin("u").Get(7)
	assert.Equal(t, int64(1), e.Hour)
	rec, _, _ = s.Get(db.NewKey(set, "u0"))
	e, _ = rec.Bin("u").Get(1)
	assert.Equal(t, int64(29), e.Hour)
}

func TestCancelPendingAndRunning(t *testing.T) {
	bs := &blockingStore{
		IStore:  newStore(t, 5),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := NewManager(bs, Options{})
	defer m.Close()
	sw := newSweeper(bs, m)

	running, err := sw.Submit(10)
	require.NoError(t, err)
	<-bs.started

	pending, err := sw.Submit(10)
	require.NoError(t, err)

	info, err := m.JobStatus(pending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, info.Status)

	require.NoError(t, sw.Cancel(pending))
	info, err = m.JobStatus(pending)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, info.Status)

	require.NoError(t, sw.Cancel(running))
	close(bs.release)

	info, err = sw.Wait(context.Background(), running)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, info.Status)
	assert.Zero(t, info.Applied)

	err = sw.Cancel(running)
	assert.True(t, errors.Is(err, ErrJobFinished))
}

func TestStopPollingDoesNotCancel(t *testing.T) {
	bs := &blockingStore{
		IStore:  newStore(t, 5),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := NewManager(bs, Options{})
	defer m.Close()
	sw := newSweeper(bs, m)

	id, err := sw.Submit(10)
	require.NoError(t, err)
	<-bs.started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = sw.Wait(ctx, id)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	info, err := m.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, info.Status)

	close(bs.release)
	info, err = sw.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, uint64(5), info.Applied)
}

func TestRetentionAndListing(t *testing.T) {
	s := newStore(t, 1)
	m := NewManager(s, Options{MaxFinished: 2})
	defer m.Close()
	sw := newSweeper(s, m)

	var ids []JobID
	for i := 0; i < 4; i++ {
		info, err := sw.Sweep(context.Background(), 10)
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}

	for _, id := range ids[:2] {
		_, err := m.JobStatus(id)
		assert.True(t, errors.Is(err, ErrJobNotFound))
	}

	list, err := m.ListJobs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[3], list[1].ID)
}

func TestSubmitValidation(t *testing.T) {
	s := newStore(t, 0)
	m := NewManager(s, Options{})

	_, err := m.SubmitBackgroundJob(set, nil)
	assert.True(t, store.HasCode(err, store.RetCInvalidOperation))

	_, err = m.SubmitBackgroundJob(set, []cdt.Operation{cdt.Size("")})
	assert.Error(t, err)

	err = m.CancelJob("missing")
	assert.True(t, errors.Is(err, ErrJobNotFound))

	m.Close()
	_, err = m.SubmitBackgroundJob(set, []cdt.Operation{cdt.Size("u")})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestStaleSegments(t *testing.T) {
	s := newStore(t, 1)
	sw := newSweeper(s, nil)

	stale, err := sw.StaleSegments(context.Background(), db.NewKey(set, "u0"), 12)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, stale.Keys)
	assert.Equal(t, 3, stale.Size)

	stale, err = sw.StaleSegments(context.Background(), db.NewKey(set, "missing"), 12)
	require.NoError(t, err)
	assert.Empty(t, stale.Keys)
	assert.Zero(t, stale.Size)
}
