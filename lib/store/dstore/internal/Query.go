package internal

import (
	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
)

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet             QueryType = iota // Retrieve a record by key.
	QueryTHas                              // Check if a record exists.
	QueryTOperate                          // Apply read-only map operations.
	QueryTOperateExisting                  // Apply read-only map operations if the record exists.
	QueryTScan                             // List the keys of a set.
	QueryTGetDBInfo                        // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTHas:
		return "Has"
	case QueryTOperate:
		return "Operate"
	case QueryTOperateExisting:
		return "OperateExisting"
	case QueryTScan:
		return "Scan"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type QueryType       // The type of Query to perform.
	Key  db.Key          // The record key (empty for some queries).
	Set  string          // The set to scan (QueryTScan).
	Ops  []cdt.Operation // Read-only operations (QueryTOperate, QueryTOperateExisting).
}

// QueryResult is the result of a QueryTGet (Record) or QueryTOperateExisting (Results) operation.
// All other query results are primitive types or predefined structs (bool, []db.Key,
// []cdt.Result, db.DatabaseInfo).
type QueryResult struct {
	Ok      bool
	Record  db.Record
	Results []cdt.Result
}
