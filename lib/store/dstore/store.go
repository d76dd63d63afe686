package dstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a serialized Command via SyncPropose.
// It returns the result data of the state machine, or a *store.Error.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragenboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the standmaschine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return zero, storeErr
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// isReadOnly reports whether no operation of ops writes
func isReadOnly(ops []cdt.Operation) bool {
	for _, op := range ops {
		if op.Type.IsWrite() {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key db.Key, bins map[string]*cdt.Map) error {
	cmd, err := internal.NewPutCommand(key, bins)
	if err != nil {
		return store.NewError(store.RetCInvalidOperation, err.Error())
	}
	_, err = s.write(cmd)
	return err
}

func (s *storeImpl) Delete(key db.Key) error {
	_, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	return err
}

func (s *storeImpl) Get(key db.Key) (db.Record, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return db.Record{}, false, err
	}
	return res.Record, res.Ok, nil
}

func (s *storeImpl) Has(key db.Key) (bool, error) {
	return read[bool](s, internal.Query{
		Type: internal.QueryTHas,
		Key:  key,
	}, false)
}

// OperateOrdered proposes the operations through raft, unless all of them are reads.
// Read-only sequences are answered with a linearizable SyncRead instead.
func (s *storeImpl) OperateOrdered(key db.Key, ops []cdt.Operation) ([]cdt.Result, error) {
	if len(ops) == 0 {
		return nil, store.NewError(store.RetCInvalidOperation, "no operations given")
	}

	if isReadOnly(ops) {
		return read[[]cdt.Result](s, internal.Query{
			Type: internal.QueryTOperate,
			Key:  key,
			Ops:  ops,
		}, false)
	}

	cmd, err := internal.NewOperateCommand(key, ops)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	data, err := s.write(cmd)
	if err != nil {
		return nil, err
	}

	var results []cdt.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to decode results: %v", err))
	}
	return results, nil
}

func (s *storeImpl) Operate(key db.Key, ops []cdt.Operation) (map[string]cdt.Result, error) {
	results, err := s.OperateOrdered(key, ops)
	if err != nil {
		return nil, err
	}
	return cdt.LastPerBin(results), nil
}

// OperateExisting works like OperateOrdered. The existence check happens on the
// state machine when the command (or query) is applied.
func (s *storeImpl) OperateExisting(key db.Key, ops []cdt.Operation) ([]cdt.Result, bool, error) {
	if len(ops) == 0 {
		return nil, false, store.NewError(store.RetCInvalidOperation, "no operations given")
	}

	if isReadOnly(ops) {
		res, err := read[internal.QueryResult](s, internal.Query{
			Type: internal.QueryTOperateExisting,
			Key:  key,
			Ops:  ops,
		}, false)
		return res.Results, res.Ok, err
	}

	cmd, err := internal.NewOperateExistingCommand(key, ops)
	if err != nil {
		return nil, false, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	data, err := s.write(cmd)
	if store.HasCode(err, store.RetCRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var results []cdt.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, true, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to decode results: %v", err))
	}
	return results, true, nil
}

func (s *storeImpl) ScanKeys(set string) ([]db.Key, error) {
	return read[[]db.Key](s, internal.Query{
		Type: internal.QueryTScan,
		Set:  set,
	}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
