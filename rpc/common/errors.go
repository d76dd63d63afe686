package common

import (
	"errors"

	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/store"
)

// Kinds of errors that keep their identity across the wire
const (
	errKindStore       = "store"
	errKindJobNotFound = "job_not_found"
	errKindJobFinished = "job_finished"
	errKindClosed      = "closed"
)

// setError fills the error fields of msg.
// Store errors are sent as code and bare message so the client can rebuild them.
func (m *Message) setError(err error) {
	m.Err = err.Error()

	var storeErr *store.Error
	switch {
	case errors.As(err, &storeErr):
		m.Err = storeErr.Msg
		m.ErrCode = uint64(storeErr.Code)
		m.ErrKind = errKindStore
	case errors.Is(err, jobs.ErrJobNotFound):
		m.ErrKind = errKindJobNotFound
	case errors.Is(err, jobs.ErrJobFinished):
		m.ErrKind = errKindJobFinished
	case errors.Is(err, jobs.ErrClosed):
		m.ErrKind = errKindClosed
	}
}

// ResponseError rebuilds the error carried by a response (nil if there is none).
// Store errors become *store.Error again, job errors wrap the jobs sentinel errors.
func (m *Message) ResponseError() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}

	switch m.ErrKind {
	case errKindStore:
		return store.NewError(store.RetCode(m.ErrCode), m.Err)
	case errKindJobNotFound:
		return &remoteError{msg: m.Err, sentinel: jobs.ErrJobNotFound}
	case errKindJobFinished:
		return &remoteError{msg: m.Err, sentinel: jobs.ErrJobFinished}
	case errKindClosed:
		return &remoteError{msg: m.Err, sentinel: jobs.ErrClosed}
	default:
		return errors.New(m.Err)
	}
}

// remoteError keeps the server's message while matching the sentinel with errors.Is
type remoteError struct {
	msg      string
	sentinel error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }
