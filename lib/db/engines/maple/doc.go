// Package maple implements an in-memory record database (db.RecordDB) built for many
// small concurrent read-modify-write operations on profile records.
//
// Key Components:
//
//   - mapleImpl: The database structure implementing db.RecordDB. It manages the shards
//     and maintains a monotonically increasing write index. The write index is not
//     generated here: callers pass it with every write (a counter for local stores, the
//     raft log index for replicated ones).
//
//   - Shard: A partition of the key space. Each shard holds an xsync.MapOf from record
//     digest to record. Records are placed with the xxhash digest of (set, user key)
//     combined with a per-instance seed.
//
//   - Record: The stored record. Its bin maps are immutable once stored. Every write
//     runs inside the shard map's Compute for the record's digest, works on clones of
//     the affected bins and replaces them on success. That makes every Operate call
//     atomic with respect to all other operations on the same record while readers
//     never block.
//
// Snapshots:
//
// Save writes a magic number and version followed by a snappy compressed stream with
// the seed, the write index and all records. Bins are encoded as the ordered pair lists
// of cdt.Map. Save runs concurrently with writes and captures each record at one point
// in time (a fuzzy snapshot across records). Load replaces the whole content.
//
// Example usage:
//
//	database := maple.NewMapleDB(nil)
//	key := db.NewKey("profiles", "u42")
//	database.Put(key, map[string]*cdt.Map{"u": cdt.NewMap()}, 1)
//	results, err := database.Operate(key, []cdt.Operation{
//		cdt.Put("u", 7, cdt.NewEntry(52000)),
//		cdt.Size("u"),
//	}, 2)
package maple
