package dstore

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// RecordStateMachine is a state machine implementation for Dragonboat RAFT
type RecordStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.RecordDB // the actual dataStorage
}

// CreateStateMaschineFactory returns a function that can be used by dragenboat to create a new standmaschine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMaschineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &RecordStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding RecordDB method.
func (fsm *RecordStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		rec, ok := fsm.database.Get(q.Key)
		return internal.QueryResult{
			Record: rec,
			Ok:     ok,
		}, nil
	case internal.QueryTHas:
		if !fsm.database.SupportsFeature(db.FeatureHas) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
		}
		return fsm.database.Has(q.Key), nil
	case internal.QueryTOperate, internal.QueryTOperateExisting:
		if !fsm.database.SupportsFeature(db.FeatureOperate) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Operate operation is not supported")
		}
		for _, op := range q.Ops {
			if op.Type.IsWrite() {
				return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("%s is a write operation and can't be used in a query", op.Type))
			}
		}
		// read-only operations don't advance the index
		if q.Type == internal.QueryTOperateExisting {
			results, found, err := fsm.database.OperateExisting(q.Key, q.Ops, fsm.database.WriteIdx())
			if err != nil {
				return nil, store.NewError(store.RetCOpFailed, err.Error())
			}
			return internal.QueryResult{Ok: found, Results: results}, nil
		}
		results, err := fsm.database.Operate(q.Key, q.Ops, fsm.database.WriteIdx())
		if err != nil {
			return nil, store.NewError(store.RetCOpFailed, err.Error())
		}
		return results, nil
	case internal.QueryTScan:
		if !fsm.database.SupportsFeature(db.FeatureScan) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Scan operation is not supported")
		}
		keys := make([]db.Key, 0)
		fsm.database.Scan(q.Set, func(key db.Key) bool {
			keys = append(keys, key)
			return true
		})
		return keys, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the RecordDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *RecordStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("Statemashine took long to update. Batch updated %d entries, took %.2fms:", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single raft log entry and returns its result.
// The result value is a store.RetCode, the data holds the encoded results (Operate)
// or an error message.
func (fsm *RecordStateMachine) apply(e sm.Entry) sm.Result {
	if len(e.Cmd) == 0 {
		return failure(store.RetCInvalidOperation, "empty command ignored")
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return failure(store.RetCInternalError, fmt.Sprintf("failed to deserialize command: %v", err))
	}

	// Check if the db supports the operation
	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return failure(store.RetCInvalidOperation, fmt.Sprintf("unknown Command operation: %s", cmd.Type))
	}
	if !fsm.database.SupportsFeature(feat) {
		return failure(store.RetCUnsupportedOperation, fmt.Sprintf("%s operation is not suported", cmd.Type))
	}

	switch cmd.Type {
	case internal.CommandTPut:
		bins, err := cmd.Bins()
		if err != nil {
			return failure(store.RetCInvalidOperation, err.Error())
		}
		fsm.database.Put(cmd.Key, bins, e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess)}

	case internal.CommandTDelete:
		fsm.database.Delete(cmd.Key, e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess)}

	case internal.CommandTOperate, internal.CommandTOperateExisting:
		ops, err := cmd.Ops()
		if err != nil {
			return failure(store.RetCInvalidOperation, err.Error())
		}
		var results []cdt.Result
		found := true
		if cmd.Type == internal.CommandTOperateExisting {
			results, found, err = fsm.database.OperateExisting(cmd.Key, ops, e.Index)
		} else {
			results, err = fsm.database.Operate(cmd.Key, ops, e.Index)
		}
		if err != nil {
			// deterministic on every replica, the record is unchanged everywhere
			return failure(store.RetCOpFailed, err.Error())
		}
		if !found {
			return failure(store.RetCRecordNotFound, fmt.Sprintf("record %s not found", cmd.Key))
		}
		data, err := json.Marshal(results)
		if err != nil {
			return failure(store.RetCInternalError, fmt.Sprintf("failed to encode results: %v", err))
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: data}

	default:
		return failure(store.RetCInvalidOperation, fmt.Sprintf("unknown Command operation: %s", cmd.Type))
	}
}

func failure(code store.RetCode, msg string) sm.Result {
	return sm.Result{Value: uint64(code), Data: []byte(msg)}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *RecordStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *RecordStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used RecordDB implemantation does not supports Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the database from a snapshot written by SaveSnapshot.
func (fsm *RecordStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used RecordDB implemantation does not supports Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *RecordStateMachine) Close() error {
	return fsm.database.Close()
}
