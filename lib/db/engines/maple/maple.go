package maple

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dSeg/lib/db/util"
	"github.com/golang/snappy"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Snapshot format version (records with map bins, snappy body)
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a record database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical timestamp
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.RecordDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	newDB := &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
	}
	newDB.shards = newShards(opts.NumShards)
	newDB.currIndex.Store(0)

	return newDB
}

func newShards(n int) []*internal.Shard {
	hasher := createIdentityHasher()
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard(hasher)
	}
	return shards
}

// --------------------------------------------------------------------------
// Hash Helper Functions
// --------------------------------------------------------------------------

// digest converts a record key to its util.UintKey and applies the instance seed
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) digest(key db.Key) util.UintKey {
	return util.HashString(key.Digest(), maple.seed)
}

// createIdentityHasher creates a hash function that combines a key with a seed
func createIdentityHasher() func(util.UintKey, uint64) uint64 {
	return func(key util.UintKey, mapSeed uint64) uint64 {
		return uint64(key) ^ mapSeed
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Put creates the record if necessary and overwrites the given bins.
// The given maps are copied, later changes by the caller don't affect the record.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Put(key db.Key, bins map[string]*cdt.Map, writeIdx uint64) {
	maple.SetWriteIdx(writeIdx)

	// copy outside the compute function to keep the critical section short
	copied := db.CloneBins(bins)

	intKey := maple.digest(key)
	shard := internal.GetShard(intKey, maple.shards)

	shard.Data.Compute(intKey, func(old internal.Record, loaded bool) (internal.Record, bool) {
		merged := make(map[string]*cdt.Map, len(old.Bins)+len(copied))
		for name, m := range old.Bins {
			merged[name] = m
		}
		for name, m := range copied {
			merged[name] = m
		}
		return internal.Record{
			Key:        key,
			Bins:       merged,
			Generation: old.Generation + 1,
			Index:      max(old.Index, writeIdx),
		}, false
	})
}

// Delete removes the record with the specified key. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key db.Key, writeIdx uint64) {
	maple.SetWriteIdx(writeIdx)

	intKey := maple.digest(key)
	shard := internal.GetShard(intKey, maple.shards)
	shard.Data.Delete(intKey)
}

// Operate applies ops to the record atomically.
// The operations run on copies of the affected bins inside the shard's Compute, so no
// other operation on the same record can interleave, and the copies only replace the
// stored bins if every operation succeeded.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Operate(key db.Key, ops []cdt.Operation, writeIdx uint64) ([]cdt.Result, error) {
	results, _, err := maple.operate(key, ops, writeIdx, true)
	return results, err
}

// OperateExisting applies ops like Operate, but only if the record exists.
// The existence check and the operations happen in the same Compute.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) OperateExisting(key db.Key, ops []cdt.Operation, writeIdx uint64) ([]cdt.Result, bool, error) {
	return maple.operate(key, ops, writeIdx, false)
}

func (maple *mapleImpl) operate(key db.Key, ops []cdt.Operation, writeIdx uint64, create bool) ([]cdt.Result, bool, error) {
	maple.SetWriteIdx(writeIdx)

	intKey := maple.digest(key)
	shard := internal.GetShard(intKey, maple.shards)

	var (
		results []cdt.Result
		found   bool
		opErr   error
	)

	shard.Data.Compute(intKey, func(old internal.Record, loaded bool) (internal.Record, bool) {
		found = loaded
		if !loaded && !create {
			return old, true
		}

		out, err := cdt.Apply(old.Bins, ops)
		if err != nil {
			opErr = err
			return old, !loaded // set delete to true if not loaded because else the record will be created
		}
		results = out.Results

		// sequences that change nothing never create or touch a record
		if !out.Modified {
			return old, !loaded
		}

		return internal.Record{
			Key:        key,
			Bins:       out.Bins,
			Generation: old.Generation + 1,
			Index:      max(old.Index, writeIdx),
		}, false
	})

	if opErr != nil {
		return nil, found, opErr
	}
	return results, found, nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the record.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key db.Key) (db.Record, bool) {
	intKey := maple.digest(key)
	shard := internal.GetShard(intKey, maple.shards)

	rec, ok := shard.Data.Load(intKey)
	if !ok {
		return db.Record{}, false
	}
	return rec.Export(), true
}

// Has checks if a record exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key db.Key) bool {
	intKey := maple.digest(key)
	shard := internal.GetShard(intKey, maple.shards)

	_, ok := shard.Data.Load(intKey)
	return ok
}

// Scan calls fn for the key of every record in set, shard by shard.
//
// Thread-safety: This method is thread-safe and can be called concurrently with writes.
// A record that is written while the scan runs may or may not be visited.
func (maple *mapleImpl) Scan(set string, fn func(key db.Key) bool) {
	for _, shard := range maple.shards {
		cont := true
		shard.Data.Range(func(_ util.UintKey, rec internal.Record) bool {
			if set != "" && rec.Key.Set != set {
				return true
			}
			cont = fn(rec.Key)
			return cont
		})
		if !cont {
			return
		}
	}
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
// The header (magic number and version) is written uncompressed, the body is a snappy
// stream. Concurrent reading and writing is allowed during Save.
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load.
func (maple *mapleImpl) Save(w io.Writer) error {
	// stored bins are immutable, so collecting the records is a consistent snapshot per record
	var records []internal.Record
	for _, shard := range maple.shards {
		shard.Data.Range(func(_ util.UintKey, rec internal.Record) bool {
			records = append(records, rec)
			return true
		})
	}

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	sw := snappy.NewBufferedWriter(bw)

	if err := binary.Write(sw, binary.LittleEndian, maple.seed); err != nil {
		return err
	}
	if err := binary.Write(sw, binary.LittleEndian, maple.currIndex.Load()); err != nil {
		return err
	}
	if err := binary.Write(sw, binary.LittleEndian, uint64(len(records))); err != nil {
		return err
	}

	for _, rec := range records {
		if err := writeRecord(sw, rec); err != nil {
			return err
		}
	}

	// Close flushes the snappy stream but leaves bw open
	if err := sw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// Load restores a database from the reader. All existing records are dropped.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	sr := snappy.NewReader(br)

	var seed, writeIdx, count uint64
	for _, v := range []*uint64{&seed, &writeIdx, &count} {
		if err := binary.Read(sr, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// recreate empty shards with the loaded seed
	maple.shards = newShards(maple.numShards)
	maple.seed = seed
	maple.currIndex.Store(0)

	for i := uint64(0); i < count; i++ {
		rec, err := readRecord(sr)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		intKey := maple.digest(rec.Key)
		internal.GetShard(intKey, maple.shards).Data.Store(intKey, rec)
	}

	maple.SetWriteIdx(writeIdx)
	return nil
}

func writeRecord(w io.Writer, rec internal.Record) error {
	if err := writeBytes(w, []byte(rec.Key.Set)); err != nil {
		return err
	}
	if err := writeBytes(w, []byte(rec.Key.UserKey)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.Generation); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.Index); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Bins))); err != nil {
		return err
	}
	for name, m := range rec.Bins {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode bin %q of %s: %w", name, rec.Key, err)
		}
		if err := writeBytes(w, []byte(name)); err != nil {
			return err
		}
		if err := writeBytes(w, data); err != nil {
			return err
		}
	}
	return nil
}

func readRecord(r io.Reader) (internal.Record, error) {
	var rec internal.Record

	set, err := readBytes(r)
	if err != nil {
		return rec, err
	}
	userKey, err := readBytes(r)
	if err != nil {
		return rec, err
	}
	rec.Key = db.NewKey(string(set), string(userKey))

	if err := binary.Read(r, binary.LittleEndian, &rec.Generation); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.Index); err != nil {
		return rec, err
	}

	var binCount uint32
	if err := binary.Read(r, binary.LittleEndian, &binCount); err != nil {
		return rec, err
	}
	rec.Bins = make(map[string]*cdt.Map, binCount)
	for j := uint32(0); j < binCount; j++ {
		name, err := readBytes(r)
		if err != nil {
			return rec, err
		}
		data, err := readBytes(r)
		if err != nil {
			return rec, err
		}
		m := cdt.NewMap()
		if err := json.Unmarshal(data, m); err != nil {
			return rec, fmt.Errorf("decode bin %q: %w", name, err)
		}
		rec.Bins[string(name)] = m
	}
	return rec, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// --------------------------------------------------------------------------
// RecordDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	currentWriteIndex := maple.currIndex.Load()

	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	var (
		mu           sync.Mutex
		recordCount  int
		segmentCount int
		shardSizes   = make([]float64, len(maple.shards))
	)

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			segments := 0
			s.Data.Range(func(_ util.UintKey, rec internal.Record) bool {
				histogram.AddSample(rec.SizeBytes())
				for _, m := range rec.Bins {
					segments += m.Len()
				}
				// only sample a few records per shard
				count++
				return count < samplesPerShard
			})

			size := s.Data.Size()

			mu.Lock()
			defer mu.Unlock()
			recordCount += size
			segmentCount += segments
			shardSizes[i] = float64(size)
		}(shardIndex, shard)
	}
	wg.Wait()

	// weighted estimate (60% median, 40% average) times the number of records
	perRecord := (histogram.MedianEstimate()*60 + histogram.AverageSize()*40) / 100

	meta := &struct {
		CurrentWriteIndex  uint64                 `json:"current_write_index"`
		ShardCount         int                    `json:"shard_count"`
		ShardDistribution  util.DistributionStats `json:"shard_distribution"`
		SampledSegmentsAvg float64                `json:"sampled_segments_avg"`
		Info               string                 `json:"info"`
	}{
		CurrentWriteIndex: currentWriteIndex,
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		Info:              "All sizes are estimates and may vary depending on the database state.",
	}
	if samples := histogram.GetCount(); samples > 0 {
		meta.SampledSegmentsAvg = float64(segmentCount) / float64(samples)
	}

	return db.DatabaseInfo{
		SizeBytes:   perRecord * recordCount,
		RecordCount: recordCount,
		DbType:      db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureOperate, db.FeatureScan,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific RecordDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeaturePut |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureOperate |
		db.FeatureScan |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the database. The engine holds no background resources.
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
