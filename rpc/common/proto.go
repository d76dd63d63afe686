package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/jobs"
)

// Version is the protocol version exchanged in the handshake.
// Client and server are compatible if the major versions match.
const Version = "1.3.0"

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Record fields
	Key  db.Key              `json:"key"`            // Used for: all record operations
	Set  string              `json:"set,omitempty"`  // Used for: Scan, JobSubmit
	Bins map[string]*cdt.Map `json:"bins,omitempty"` // Used for: Put (request), Get (response)
	Ops  []cdt.Operation     `json:"ops,omitempty"`  // Used for: Operate, OperateUnordered, JobSubmit

	// Response only fields
	Results    []cdt.Result          `json:"results,omitempty"`     // Used for: Operate
	BinResults map[string]cdt.Result `json:"bin_results,omitempty"` // Used for: OperateUnordered
	Keys       []db.Key              `json:"keys,omitempty"`        // Used for: Scan
	Generation uint32                `json:"generation,omitempty"`  // Used for: Get
	Info       []byte                `json:"info,omitempty"`        // Used for: Info (json encoded db.DatabaseInfo)
	Jobs       []jobs.JobInfo        `json:"jobs,omitempty"`        // Used for: JobStatus, JobList
	Ok         bool                  `json:"ok,omitempty"`          // Used for: Get, Has

	// Job fields
	JobID jobs.JobID `json:"job_id,omitempty"` // Used for: JobSubmit (response), JobStatus, JobCancel

	// Handshake
	Version string `json:"version,omitempty"`

	// Errors
	Err     string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode uint64 `json:"err_code,omitempty"` // store.RetCode of store errors
	ErrKind string `json:"err_kind,omitempty"` // Kind of well known errors, see errors.go
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewVersionRequest creates a new handshake request
func NewVersionRequest() *Message {
	return &Message{MsgType: MsgTVersion, Version: Version}
}

// NewVersionResponse creates a new handshake response
func NewVersionResponse() *Message {
	return &Message{MsgType: MsgTVersion, Version: Version}
}

// NewPutRequest creates a new Put request
func NewPutRequest(key db.Key, bins map[string]*cdt.Map) *Message {
	return &Message{
		MsgType: MsgTRecPut,
		Key:     key,
		Bins:    bins,
	}
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key db.Key) *Message {
	return &Message{
		MsgType: MsgTRecDelete,
		Key:     key,
	}
}

// NewGetRequest creates a new Get request
func NewGetRequest(key db.Key) *Message {
	return &Message{
		MsgType: MsgTRecGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(rec db.Record, ok bool, err error) *Message {
	msg := NewResponse(MsgTRecGet, err)
	msg.Ok = ok
	if ok {
		msg.Key = rec.Key
		msg.Bins = rec.Bins
		msg.Generation = rec.Generation
	}
	return msg
}

// NewHasRequest creates a new Has request
func NewHasRequest(key db.Key) *Message {
	return &Message{
		MsgType: MsgTRecHas,
		Key:     key,
	}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	msg := NewResponse(MsgTRecHas, err)
	msg.Ok = ok
	return msg
}

// NewOperateRequest creates a new request for an ordered operation sequence
func NewOperateRequest(key db.Key, ops []cdt.Operation) *Message {
	return &Message{
		MsgType: MsgTRecOperate,
		Key:     key,
		Ops:     ops,
	}
}

// NewOperateResponse creates a new ordered Operate response
func NewOperateResponse(results []cdt.Result, err error) *Message {
	msg := NewResponse(MsgTRecOperate, err)
	msg.Results = results
	return msg
}

// NewOperateExistingRequest creates a new request for an ordered operation sequence
// that must not create the record
func NewOperateExistingRequest(key db.Key, ops []cdt.Operation) *Message {
	return &Message{
		MsgType: MsgTRecOperateExisting,
		Key:     key,
		Ops:     ops,
	}
}

// NewOperateExistingResponse creates a new OperateExisting response, Ok reports whether the record was found
func NewOperateExistingResponse(results []cdt.Result, found bool, err error) *Message {
	msg := NewResponse(MsgTRecOperateExisting, err)
	msg.Results = results
	msg.Ok = found
	return msg
}

// NewOperateUnorderedRequest creates a new request for an unordered operation sequence
func NewOperateUnorderedRequest(key db.Key, ops []cdt.Operation) *Message {
	return &Message{
		MsgType: MsgTRecOperateUnordered,
		Key:     key,
		Ops:     ops,
	}
}

// NewOperateUnorderedResponse creates a new unordered Operate response
func NewOperateUnorderedResponse(results map[string]cdt.Result, err error) *Message {
	msg := NewResponse(MsgTRecOperateUnordered, err)
	msg.BinResults = results
	return msg
}

// NewScanRequest creates a new request for the keys of a set
func NewScanRequest(set string) *Message {
	return &Message{
		MsgType: MsgTRecScan,
		Set:     set,
	}
}

// NewScanResponse creates a new Scan response
func NewScanResponse(keys []db.Key, err error) *Message {
	msg := NewResponse(MsgTRecScan, err)
	msg.Keys = keys
	return msg
}

// NewInfoRequest creates a new database info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTRecInfo}
}

// NewInfoResponse creates a new database info response.
// The info is json encoded since its metadata is an arbitrary value.
func NewInfoResponse(info db.DatabaseInfo, err error) *Message {
	if err == nil {
		data, mErr := json.Marshal(info)
		if mErr != nil {
			err = fmt.Errorf("failed to encode database info: %w", mErr)
		} else {
			msg := NewResponse(MsgTRecInfo, nil)
			msg.Info = data
			return msg
		}
	}
	return NewResponse(MsgTRecInfo, err)
}

// NewJobSubmitRequest creates a new background job request
func NewJobSubmitRequest(set string, ops []cdt.Operation) *Message {
	return &Message{
		MsgType: MsgTJobSubmit,
		Set:     set,
		Ops:     ops,
	}
}

// NewJobSubmitResponse creates a new background job response
func NewJobSubmitResponse(id jobs.JobID, err error) *Message {
	msg := NewResponse(MsgTJobSubmit, err)
	msg.JobID = id
	return msg
}

// NewJobStatusRequest creates a new job status request
func NewJobStatusRequest(id jobs.JobID) *Message {
	return &Message{
		MsgType: MsgTJobStatus,
		JobID:   id,
	}
}

// NewJobStatusResponse creates a new job status response
func NewJobStatusResponse(info jobs.JobInfo, err error) *Message {
	msg := NewResponse(MsgTJobStatus, err)
	if err == nil {
		msg.Jobs = []jobs.JobInfo{info}
	}
	return msg
}

// NewJobCancelRequest creates a new job cancel request
func NewJobCancelRequest(id jobs.JobID) *Message {
	return &Message{
		MsgType: MsgTJobCancel,
		JobID:   id,
	}
}

// NewJobListRequest creates a new job list request
func NewJobListRequest() *Message {
	return &Message{MsgType: MsgTJobList}
}

// NewJobListResponse creates a new job list response
func NewJobListResponse(infos []jobs.JobInfo, err error) *Message {
	msg := NewResponse(MsgTJobList, err)
	msg.Jobs = infos
	return msg
}

// NewResponse creates a response of type t carrying err (if any)
func NewResponse(t MessageType, err error) *Message {
	msg := &Message{MsgType: t}
	if err != nil {
		msg.setError(err)
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTUnknown:             "unknown",
	MsgTSuccess:             "success",
	MsgTError:               "error",
	MsgTVersion:             "version",
	MsgTRecPut:              "put",
	MsgTRecDelete:           "delete",
	MsgTRecGet:              "get",
	MsgTRecHas:              "has",
	MsgTRecOperate:          "operate",
	MsgTRecOperateUnordered: "operateUnordered",
	MsgTRecScan:             "scan",
	MsgTRecInfo:             "info",
	MsgTJobSubmit:           "jobSubmit",
	MsgTJobStatus:           "jobStatus",
	MsgTJobCancel:           "jobCancel",
	MsgTJobList:             "jobList",
	MsgTRecOperateExisting:  "operateExisting",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsJobMessage reports whether the message is handled by the job service
func (t MessageType) IsJobMessage() bool {
	return t >= MsgTJobSubmit && t <= MsgTJobList
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred
	MsgTVersion             // Version handshake

	// IStore operations

	MsgTRecPut              // Write bins of a record
	MsgTRecDelete           // Delete a record
	MsgTRecGet              // Read a record
	MsgTRecHas              // Check if a record exists
	MsgTRecOperate          // Atomic operation sequence, ordered results
	MsgTRecOperateUnordered // Atomic operation sequence, last result per bin
	MsgTRecScan             // Keys of a set
	MsgTRecInfo             // Database statistics

	// IJobService operations

	MsgTJobSubmit // Submit a background job
	MsgTJobStatus // Poll a job
	MsgTJobCancel // Cancel a job
	MsgTJobList   // List all jobs

	// Added in 1.3, numbered after the job types to keep older values stable

	MsgTRecOperateExisting // Atomic operation sequence on an existing record
)
