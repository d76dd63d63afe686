package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.RecordDB

// IStore is the generic interface for interacting with a record store.
// All write operations return only a *Error (nil on success),
// while read operations return the requested data along with a *Error (nil on success).
type IStore interface {
	// Put creates the record if necessary and overwrites the given bins.
	Put(key db.Key, bins map[string]*cdt.Map) (err error)
	// Delete deletes a record. Deleting a missing record is not an error.
	Delete(key db.Key) (err error)
	// Get returns the record. The boolean return value indicates whether the record was found.
	Get(key db.Key) (record db.Record, loaded bool, err error)
	// Has returns whether a record exists in the store.
	Has(key db.Key) (loaded bool, err error)
	// OperateOrdered applies ops atomically to one record and returns one result per
	// operation, in submission order. If any operation fails, the error has code
	// RetCOpFailed, no result is returned and the record is unchanged.
	OperateOrdered(key db.Key, ops []cdt.Operation) (results []cdt.Result, err error)
	// Operate is the unordered variant of OperateOrdered. It returns the last result
	// of every bin that was touched.
	Operate(key db.Key, ops []cdt.Operation) (results map[string]cdt.Result, err error)
	// OperateExisting is OperateOrdered for records that exist at the time the
	// operations are applied. A missing record is neither read nor created, found is false.
	OperateExisting(key db.Key, ops []cdt.Operation) (results []cdt.Result, found bool, err error)
	// ScanKeys returns the keys of all records in a set at the time of the call.
	ScanKeys(set string) (keys []db.Key, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// HasCode reports whether err (or an error it wraps) is a *Error with the given code
func HasCode(err error, code RetCode) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCRecordNotFound                      // 4: An explicit lookup found no record.
	RetCOpFailed                            // 5: A map operation failed, the whole batch was voided.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCRecordNotFound:
		return "RecordNotFound"
	case RetCOpFailed:
		return "OpFailed"
	default:
		return "Unknown"
	}
}
