package jobs

import (
	"errors"

	"github.com/ValentinKolb/dSeg/lib/cdt"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
	ErrClosed      = errors.New("job manager is closed")
)

// IJobService runs operation sequences as background jobs over every record of a set.
// Jobs are observed by polling JobStatus; there are no callbacks.
type IJobService interface {
	// SubmitBackgroundJob schedules ops to be applied to every record of set.
	// It returns immediately with the id of the new (pending) job.
	SubmitBackgroundJob(set string, ops []cdt.Operation) (JobID, error)

	// JobStatus returns a snapshot of the job. Finished jobs are retained for a
	// limited time only, after that ErrJobNotFound is returned.
	JobStatus(id JobID) (JobInfo, error)

	// CancelJob requests cancellation. A pending job is cancelled immediately, a
	// running job stops before the next record. Returns ErrJobFinished for jobs in a
	// terminal state.
	CancelJob(id JobID) error

	// ListJobs returns all known jobs ordered by submission time
	ListJobs() ([]JobInfo, error)
}
