package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dSeg/lib/batch"
	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
)

// DefaultPollInterval is the pause between two status polls of a sweep
const DefaultPollInterval = 250 * time.Millisecond

// Sweeper removes expired segment entries from every record of a set.
// The removal runs as a background job; the sweeper submits it and polls its status.
type Sweeper struct {
	Store        store.IStore
	Jobs         IJobService
	Set          string
	Bin          string
	PollInterval time.Duration

	// OnPoll is called with every polled snapshot (optional)
	OnPoll func(JobInfo)
}

// NewSweeper creates a sweeper for the segment map bin of set
func NewSweeper(s store.IStore, svc IJobService, set, bin string) *Sweeper {
	return &Sweeper{
		Store:        s,
		Jobs:         svc,
		Set:          set,
		Bin:          bin,
		PollInterval: DefaultPollInterval,
	}
}

// SweepOp is the operation applied to every record: remove all entries with an
// expiration hour below cutoff
func (s *Sweeper) SweepOp(cutoff int64) cdt.Operation {
	return cdt.RemoveByValueRange(s.Bin, 0, cutoff, cdt.ReturnNone, false)
}

// Submit starts the sweep job and returns its id without waiting
func (s *Sweeper) Submit(cutoff int64) (JobID, error) {
	id, err := s.Jobs.SubmitBackgroundJob(s.Set, []cdt.Operation{s.SweepOp(cutoff)})
	if err != nil {
		return "", fmt.Errorf("submit sweep of %s below hour %d: %w", s.Set, cutoff, err)
	}
	return id, nil
}

// Sweep submits the sweep job and waits until it reaches a terminal state.
// A failed job is not retried, its final state is returned to the caller.
// Cancelling ctx only stops waiting, the job keeps running (see Cancel).
func (s *Sweeper) Sweep(ctx context.Context, cutoff int64) (JobInfo, error) {
	id, err := s.Submit(cutoff)
	if err != nil {
		return JobInfo{}, err
	}
	return s.Wait(ctx, id)
}

// Wait polls the job status until the job is done or ctx is cancelled.
// On cancellation the last polled snapshot is returned together with ctx.Err().
func (s *Sweeper) Wait(ctx context.Context, id JobID) (JobInfo, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var last JobInfo
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		info, err := s.Jobs.JobStatus(id)
		if err != nil {
			return last, fmt.Errorf("poll job %s: %w", id, err)
		}
		last = info
		if s.OnPoll != nil {
			s.OnPoll(info)
		}
		if info.Done() {
			return info, nil
		}
		timer.Reset(interval)
	}
}

// Cancel explicitly cancels a sweep job
func (s *Sweeper) Cancel(id JobID) error {
	return s.Jobs.CancelJob(id)
}

// Stale describes the expired entries of one record
type Stale struct {
	Keys []int64 // segment ids with an expiration hour below the cutoff
	Size int     // total number of entries in the map
}

// StaleSegments returns the expired segment ids and the map size of one record,
// read together in one atomic batch.
func (s *Sweeper) StaleSegments(ctx context.Context, key db.Key, cutoff int64) (Stale, error) {
	results, err := batch.New(s.Store, key, s.Bin).
		GetByValueRange(0, cutoff, cdt.ReturnKey, false).
		Size().
		ExecOrdered(ctx)
	if err != nil {
		return Stale{}, err
	}
	return Stale{
		Keys: results[0].Keys,
		Size: results[1].Count,
	}, nil
}
