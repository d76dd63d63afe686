// Package store provides the high-level interface for record storage: whole-record
// reads and writes plus atomic operation sequences on the segment maps stored in a
// record's bins. It is an abstraction layer over the lower-level db.RecordDB
// implementations, adding write index management and unified error reporting.
//
// Key Components:
//
//   - IStore Interface: The core abstraction for interacting with a record store.
//     OperateOrdered returns one cdt.Result per operation in the order given, Operate
//     returns the last result per bin. Both apply the sequence atomically: on the
//     first failing operation the record is left untouched.
//
//   - Error System: Methods return *Error values carrying a RetCode. Use HasCode to
//     test for a specific condition, e.g. RetCOpFailed for a rejected operation.
//
//   - DBFactory: A function type that abstracts the creation of db.RecordDB instances.
//
// Implementations:
//
//   - Local Store (lstore): wraps a db.RecordDB and advances the write index with an
//     atomic counter. Suitable for single-node use and tests.
//     Available in the "github.com/ValentinKolb/dSeg/lib/store/lstore" package.
//
//   - Distributed Store (dstore): replicates every write through the Dragonboat RAFT
//     library. Read-only operation sequences are answered with linearizable reads.
//     Available in the "github.com/ValentinKolb/dSeg/lib/store/dstore" package.
package store
