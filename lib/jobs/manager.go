package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db/util"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("jobs")

// DefaultMaxFinished is the number of finished jobs kept for status queries
const DefaultMaxFinished = 128

// Options configure a Manager
type Options struct {
	Namespace   string // used in logs and metric labels
	MaxFinished int    // finished jobs to retain, the oldest are forgotten first
}

// job is the mutable state behind a JobInfo
type job struct {
	mu     sync.Mutex
	info   JobInfo
	ctx    context.Context
	cancel context.CancelFunc
}

func (j *job) snapshot() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	info := j.info
	info.Ops = append([]cdt.Operation(nil), j.info.Ops...)
	return info
}

// transition moves the job to next if the state machine allows it
func (j *job) transition(next Status) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(next)
}

func (j *job) transitionLocked(next Status) bool {
	if !j.info.Status.CanTransition(next) {
		return false
	}
	j.info.Status = next
	switch next {
	case StatusInProgress:
		j.info.Started = time.Now()
	default:
		if next.IsTerminal() {
			j.info.Finished = time.Now()
		}
	}
	return true
}

// Manager is the IJobService of one namespace store.
// Submitted jobs are queued on a lock-free MPSC queue and run one after another by a
// single worker goroutine. Each job scans the keys of its set and applies its
// operations to every record through the store's atomic Operate, so normal traffic
// keeps flowing while a job runs.
type Manager struct {
	namespace string
	store     store.IStore

	jobs  *xsync.MapOf[JobID, *job]
	queue *util.LockFreeMPSC[job]

	retentionMu sync.Mutex
	retention   *util.MapHeap[JobID] // finished jobs by finish sequence
	finishSeq   uint64
	maxFinished int

	ctx    context.Context
	cancel context.CancelFunc
	worker sync.WaitGroup
}

// NewManager creates a manager for s and starts its worker
func NewManager(s store.IStore, opts Options) *Manager {
	if opts.MaxFinished <= 0 {
		opts.MaxFinished = DefaultMaxFinished
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		namespace:   opts.Namespace,
		store:       s,
		jobs:        xsync.NewMapOf[JobID, *job](),
		queue:       util.NewLockFreeMPSC[job](),
		retention:   util.NewMapHeap[JobID](),
		maxFinished: opts.MaxFinished,
		ctx:         ctx,
		cancel:      cancel,
	}

	m.worker.Add(1)
	go m.run()
	return m
}

// Close cancels all pending and running jobs and waits for the worker to exit
func (m *Manager) Close() {
	m.cancel()
	m.queue.Close()
	m.worker.Wait()
}

// --------------------------------------------------------------------------
// Interface Methods (docs see interface.go)
// --------------------------------------------------------------------------

func (m *Manager) SubmitBackgroundJob(set string, ops []cdt.Operation) (JobID, error) {
	if len(ops) == 0 {
		return "", store.NewError(store.RetCInvalidOperation, "no operations given")
	}
	for i, op := range ops {
		if op.Bin == "" {
			return "", store.NewError(store.RetCInvalidOperation, fmt.Sprintf("operation %d (%s): bin name is empty", i, op.Type))
		}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	j := &job{
		info: JobInfo{
			ID:        JobID(uuid.NewString()),
			Namespace: m.namespace,
			Set:       set,
			Ops:       append([]cdt.Operation(nil), ops...),
			Status:    StatusPending,
			Submitted: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}

	m.jobs.Store(j.info.ID, j)
	if !m.queue.Push(j) {
		m.jobs.Delete(j.info.ID)
		cancel()
		return "", ErrClosed
	}

	m.counter("dseg_jobs_submitted_total").Inc()
	log.Infof("job %s submitted for %s/%s (%d ops)", j.info.ID, m.namespace, set, len(ops))
	return j.info.ID, nil
}

func (m *Manager) JobStatus(id JobID) (JobInfo, error) {
	j, ok := m.jobs.Load(id)
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.snapshot(), nil
}

func (m *Manager) CancelJob(id JobID) error {
	j, ok := m.jobs.Load(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	j.mu.Lock()
	switch j.info.Status {
	case StatusPending:
		// the worker skips it when it is dequeued
		m.finishLocked(j, StatusCancelled, "")
		j.mu.Unlock()
		j.cancel()
		return nil
	case StatusInProgress:
		j.mu.Unlock()
		j.cancel()
		return nil
	default:
		status := j.info.Status
		j.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, status)
	}
}

func (m *Manager) ListJobs() ([]JobInfo, error) {
	infos := make([]JobInfo, 0, m.jobs.Size())
	m.jobs.Range(func(_ JobID, j *job) bool {
		infos = append(infos, j.snapshot())
		return true
	})
	sort.Slice(infos, func(a, b int) bool {
		return infos[a].Submitted.Before(infos[b].Submitted)
	})
	return infos, nil
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

func (m *Manager) run() {
	defer m.worker.Done()
	for j := range m.queue.Recv() {
		m.execute(j)
	}
}

// execute visits every record of the job's set.
// Cancellation is checked between records; a failing record is counted and the
// scan continues, the job then ends FAILED.
func (m *Manager) execute(j *job) {
	if j.ctx.Err() != nil {
		m.complete(j, StatusCancelled, "")
		return
	}
	if !j.transition(StatusInProgress) {
		// cancelled while pending
		return
	}

	defer j.cancel()
	id, set, ops := j.info.ID, j.info.Set, j.info.Ops
	start := time.Now()

	keys, err := m.store.ScanKeys(set)
	if err != nil {
		m.complete(j, StatusFailed, fmt.Sprintf("scan of set %q failed: %v", set, err))
		return
	}

	var firstErr error
	for _, key := range keys {
		if j.ctx.Err() != nil {
			m.complete(j, StatusCancelled, "")
			return
		}

		// records deleted since the scan are skipped, the operations must not recreate them
		_, exists, err := m.store.OperateExisting(key, ops)

		j.mu.Lock()
		j.info.Scanned++
		switch {
		case err != nil:
			j.info.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("record %s: %w", key, err)
			}
		case exists:
			j.info.Applied++
		}
		j.mu.Unlock()

		if err != nil {
			m.counter("dseg_job_records_total", "result", "failed").Inc()
			log.Warningf("job %s: operations on %s failed: %v", id, key, err)
		} else if exists {
			m.counter("dseg_job_records_total", "result", "applied").Inc()
		}
	}

	metrics.GetOrCreateHistogram(fmt.Sprintf(`dseg_job_duration_seconds{namespace=%q}`, m.namespace)).UpdateDuration(start)

	if firstErr != nil {
		info := j.snapshot()
		m.complete(j, StatusFailed, fmt.Sprintf("%d of %d records failed, first error: %v", info.Failed, info.Scanned, firstErr))
		return
	}
	m.complete(j, StatusCompleted, "")
}

// complete moves a job to its terminal state
func (m *Manager) complete(j *job, status Status, errMsg string) {
	j.mu.Lock()
	ok := m.finishLocked(j, status, errMsg)
	info := j.info
	j.mu.Unlock()

	if ok {
		log.Infof("job %s finished: %s", info.ID, info)
	}
}

// finishLocked transitions j (whose lock is held) into a terminal state and records it
// for retention, evicting the oldest finished jobs. Retention is updated before the
// lock is released, so a poller that sees the terminal state also sees the eviction.
func (m *Manager) finishLocked(j *job, status Status, errMsg string) bool {
	if !j.transitionLocked(status) {
		return false
	}
	j.info.Error = errMsg
	m.counter("dseg_jobs_finished_total", "status", status.String()).Inc()

	m.retentionMu.Lock()
	defer m.retentionMu.Unlock()

	m.finishSeq++
	m.retention.AddItem(j.info.ID, m.finishSeq)
	for m.retention.Len() > m.maxFinished {
		oldest, ok := m.retention.PopMin()
		if !ok {
			break
		}
		m.jobs.Delete(oldest.Key)
	}
	return true
}

// counter returns the namespace labeled counter name, with optional extra label pairs
func (m *Manager) counter(name string, labels ...string) *metrics.Counter {
	l := fmt.Sprintf("namespace=%q", m.namespace)
	for i := 0; i+1 < len(labels); i += 2 {
		l += fmt.Sprintf(",%s=%q", labels[i], labels[i+1])
	}
	return metrics.GetOrCreateCounter(name + "{" + l + "}")
}
