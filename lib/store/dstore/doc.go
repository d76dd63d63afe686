// Package dstore replicates the segment records of a namespace with the Dragonboat
// RAFT library. The store returned by NewDistributedStore implements store.IStore;
// every replica of the shard holds a RecordStateMachine wrapping its own db.RecordDB.
//
// Operation sequences:
//
// A sequence is routed by its operation types (see isReadOnly in store.go).
//
//   - Read-only sequences (Get*, Size) are sent to the local replica as a
//     QueryTOperate query with SyncRead. Lookup runs them against the record at the
//     last applied index, so they see every write committed before the read started.
//     They never enter the log and never create a record; a write operation that
//     reaches Lookup is refused with RetCInvalidOperation.
//
//   - Sequences with at least one write are encoded as a CommandTOperate entry
//     (binary key header, JSON operations) and proposed with SyncPropose. Once the
//     entry is committed, every replica decodes it in Update and applies the whole
//     sequence to its record under the raft index of the entry. The index becomes
//     the write index of the record database, the results travel back to the
//     proposer as JSON in sm.Result.Data.
//
// A sequence that fails on its record (e.g. Increment on a missing segment) is
// voided as a whole. The failure only depends on the record and the entry, so every
// replica rejects it the same way: the record stays unchanged everywhere and the
// result carries RetCOpFailed with the error text, which the proposer turns into a
// *store.Error.
//
// CommandTOperateExisting (and QueryTOperateExisting for read-only sequences) is the
// variant used by background jobs. The existence check happens while the entry is
// applied, so a record deleted by an earlier entry is reported as RetCRecordNotFound
// instead of being recreated.
//
// Put and Delete are plain commands with the same flow. Get, Has, ScanKeys and
// GetDBInfo are queries; GetDBInfo uses StaleRead.
//
// Retries and snapshots:
//
// ErrSystemBusy from Dragonboat is retried a few times with a short pause; any other
// error is returned as RetCInternalError. Snapshots are fuzzy: SaveSnapshot streams
// db.RecordDB.Save while updates continue, RecoverFromSnapshot calls Load and the
// replica then replays the entries committed after the snapshot.
//
// Setup:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	...
//	factory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//	err = nh.StartConcurrentReplica(members, false, dstore.CreateStateMaschineFactory(factory), shardConfig)
//	...
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// The lstore package offers the same interface on a single node.
package dstore
