package lstore

import (
	"sync/atomic"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
)

type storeImpl struct {
	db    db.RecordDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using the maple engine from the db package directly.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// NewLocalStoreFromDB wraps an existing database (e.g. one restored from a snapshot).
// The write index continues after the database's current index.
func NewLocalStoreFromDB(database db.RecordDB) store.IStore {
	s := &storeImpl{db: database}
	s.index.Store(database.WriteIdx())
	return s
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(key db.Key, bins map[string]*cdt.Map) error {
	if !s.db.SupportsFeature(db.FeaturePut) {
		return store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}
	s.db.Put(key, bins, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Delete(key db.Key) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	s.db.Delete(key, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Get(key db.Key) (db.Record, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return db.Record{}, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	rec, ok := s.db.Get(key)
	return rec, ok, nil
}

func (s *storeImpl) Has(key db.Key) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) OperateOrdered(key db.Key, ops []cdt.Operation) ([]cdt.Result, error) {
	if !s.db.SupportsFeature(db.FeatureOperate) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Operate operation is not supported")
	}
	if len(ops) == 0 {
		return nil, store.NewError(store.RetCInvalidOperation, "no operations given")
	}
	results, err := s.db.Operate(key, ops, s.incAndGetIndex())
	if err != nil {
		return nil, store.NewError(store.RetCOpFailed, err.Error())
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

func (s *storeImpl) OperateExisting(key db.Key, ops []cdt.Operation) ([]cdt.Result, bool, error) {
	if !s.db.SupportsFeature(db.FeatureOperate) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Operate operation is not supported")
	}
	if len(ops) == 0 {
		return nil, false, store.NewError(store.RetCInvalidOperation, "no operations given")
	}
	results, found, err := s.db.OperateExisting(key, ops, s.incAndGetIndex())
	if err != nil {
		return nil, found, store.NewError(store.RetCOpFailed, err.Error())
	}
	return results, found, nil
}

func (s *storeImpl) ScanKeys(set string) ([]db.Key, error) {
	if !s.db.SupportsFeature(db.FeatureScan) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Scan operation is not supported")
	}
	var keys []db.Key
	s.db.Scan(set, func(key db.Key) bool {
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
