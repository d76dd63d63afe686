package internal

import (
	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Stored record
// --------------------------------------------------------------------------

// Record is the stored form of a db.Record.
// The bin maps are never modified after they were stored: writers replace them with
// modified clones inside Compute, so readers may share them without copying.
type Record struct {
	Key        db.Key
	Bins       map[string]*cdt.Map
	Generation uint32
	Index      uint64 // Write index of the last modification
}

// Export converts the stored record into a caller owned db.Record
func (r Record) Export() db.Record {
	return db.Record{
		Key:        r.Key,
		Bins:       db.CloneBins(r.Bins),
		Generation: r.Generation,
		LastUpdate: r.Index,
	}
}

// SizeBytes estimates the memory used by the record
func (r Record) SizeBytes() int {
	size := len(r.Key.Set) + len(r.Key.UserKey) + 16
	for name, m := range r.Bins {
		size += len(name) + m.SizeBytes()
	}
	return size
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[util.UintKey, Record]
}

// NewShard creates a new shard with the provided hash function
func NewShard(hasher func(util.UintKey, uint64) uint64) *Shard {
	return &Shard{
		Data: xsync.NewMapOfWithHasher[util.UintKey, Record](hasher),
	}
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
