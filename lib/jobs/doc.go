// Package jobs runs operation sequences as background jobs over every record of a
// set and removes expired segments with them.
//
// A job moves through the states
//
//	PENDING -> IN_PROGRESS -> COMPLETED | FAILED
//	PENDING | IN_PROGRESS -> CANCELLED
//
// and is observed by polling only. The Manager implements IJobService for one
// namespace store; the Sweeper builds the eviction operation, submits it and polls
// the job until it is done:
//
//	m := jobs.NewManager(s, jobs.Options{Namespace: "test"})
//	defer m.Close()
//
//	sw := jobs.NewSweeper(s, m, "profiles", "u")
//	info, err := sw.Sweep(ctx, profile.HourOf(time.Now()))
//
// Stopping a sweep's poll loop never cancels the job, Cancel has to be called
// explicitly.
package jobs
