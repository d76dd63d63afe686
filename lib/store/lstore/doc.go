// Package lstore implements a local, in-memory, single-node record store based on the
// store.IStore interface. It is a thin wrapper around any db.RecordDB implementation
// with automatic write index management. Data is not persisted between restarts.
//
// Before executing an operation the store checks that the underlying db.RecordDB
// supports the required feature; unsupported operations return RetCUnsupportedOperation.
// All methods are safe for concurrent use, atomicity of an operation sequence on a
// single record is provided by the database engine.
//
// Usage Example:
//
//	factory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	key := db.NewKey("test", "u42")
//	results, err := s.OperateOrdered(key, []cdt.Operation{
//		cdt.Put("segments", 1001, cdt.NewEntry(48000)),
//		cdt.Size("segments"),
//	})
package lstore
