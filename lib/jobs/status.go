package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
)

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// Status is the lifecycle state of a background job
type Status uint8

const (
	StatusPending    Status = iota // Queued, not yet picked up by the worker
	StatusInProgress               // The worker is visiting the records of the set
	StatusCompleted                // Every record was visited without error
	StatusFailed                   // The scan or at least one record operation failed
	StatusCancelled                // Cancelled before it could finish
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// ParseStatus is the inverse of Status.String (case-insensitive)
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatusPending, nil
	case "IN_PROGRESS", "IN-PROGRESS", "INPROGRESS":
		return StatusInProgress, nil
	case "COMPLETED":
		return StatusCompleted, nil
	case "FAILED":
		return StatusFailed, nil
	case "CANCELLED", "CANCELED":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("unknown job status %q", s)
	}
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether the state machine allows moving from s to next
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// --------------------------------------------------------------------------
// Job information
// --------------------------------------------------------------------------

// JobID identifies a background job (a random uuid)
type JobID string

// JobInfo is a point-in-time snapshot of a background job
type JobInfo struct {
	ID        JobID           `json:"id"`
	Namespace string          `json:"namespace"`
	Set       string          `json:"set"`
	Ops       []cdt.Operation `json:"ops,omitempty"`
	Status    Status          `json:"status"`
	Scanned   uint64          `json:"scanned"` // records visited
	Applied   uint64          `json:"applied"` // records the operations were applied to
	Failed    uint64          `json:"failed"`  // records whose operations failed
	Error     string          `json:"error,omitempty"`
	Submitted time.Time       `json:"submitted"`
	Started   time.Time       `json:"started,omitempty"`
	Finished  time.Time       `json:"finished,omitempty"`
}

// Done reports whether the job reached a terminal state
func (i JobInfo) Done() bool {
	return i.Status.IsTerminal()
}

// Duration is the run time of the job so far (zero while pending)
func (i JobInfo) Duration() time.Duration {
	switch {
	case i.Started.IsZero():
		return 0
	case i.Finished.IsZero():
		return time.Since(i.Started)
	default:
		return i.Finished.Sub(i.Started)
	}
}

func (i JobInfo) String() string {
	s := fmt.Sprintf("%s %s (%s/%s) scanned=%d applied=%d failed=%d",
		i.ID, i.Status, i.Namespace, i.Set, i.Scanned, i.Applied, i.Failed)
	if i.Error != "" {
		s += " error=" + i.Error
	}
	return s
}
