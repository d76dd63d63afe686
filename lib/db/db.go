package db

import (
	"io"

	"github.com/ValentinKolb/dSeg/lib/cdt"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut     Feature = 1 << iota // Support for Put operations
	FeatureGet                         // Support for Get operations
	FeatureDelete                      // Support for Delete operations
	FeatureHas                         // Support for Has operations
	FeatureOperate                     // Support for atomic map operations
	FeatureScan                        // Support for scanning the keys of a set
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureOperate:
		return "Operate"
	case FeatureScan:
		return "Scan"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	RecordCount       int            `json:"record_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Keys and Records
// --------------------------------------------------------------------------

// Key addresses one record inside a namespace
type Key struct {
	Set     string `json:"set"`
	UserKey string `json:"key"`
}

// NewKey creates a key
func NewKey(set, userKey string) Key {
	return Key{Set: set, UserKey: userKey}
}

func (k Key) String() string {
	return k.Set + "/" + k.UserKey
}

// Digest returns the string that is hashed to place the record
func (k Key) Digest() string {
	return k.Set + "\x00" + k.UserKey
}

// Record is a keyed record with named map bins
type Record struct {
	Key        Key                 `json:"key"`
	Bins       map[string]*cdt.Map `json:"bins"`
	Generation uint32              `json:"generation"`  // Incremented on every modification
	LastUpdate uint64              `json:"last_update"` // Write index of the last modification
}

// Bin returns the map stored in the named bin (nil if the bin does not exist)
func (r Record) Bin(name string) *cdt.Map {
	return r.Bins[name]
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	out := r
	out.Bins = CloneBins(r.Bins)
	return out
}

// CloneBins deep copies a set of bins
func CloneBins(bins map[string]*cdt.Map) map[string]*cdt.Map {
	if bins == nil {
		return nil
	}
	out := make(map[string]*cdt.Map, len(bins))
	for name, m := range bins {
		out[name] = m.Clone()
	}
	return out
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// RecordDB defines an interface for record database implementations.
// Each record holds a set of named map bins that are modified with cdt operations.
// Any implementation of this interface must guarantee that all operations on a single
// record are atomic with respect to each other.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type RecordDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put creates the record if necessary and overwrites the given bins.
	// Bins of an existing record that are not named in bins are kept.
	// The writeIndex parameter is used as a logical timestamp for the record.
	Put(key Key, bins map[string]*cdt.Map, writeIndex uint64)

	// Delete removes the record with the specified key.
	Delete(key Key, writeIndex uint64)

	// Operate applies ops to the record in order and atomically. Either all operations
	// succeed and their effects are committed, or an error is returned and the record is
	// unchanged. The results are aligned with ops. A record that does not exist reads as
	// a record with empty bins; it is only created if an operation writes to it.
	Operate(key Key, ops []cdt.Operation, writeIndex uint64) (results []cdt.Result, err error)

	// OperateExisting is Operate for records that exist. A missing record is neither
	// read nor created; found is false and no results are returned.
	OperateExisting(key Key, ops []cdt.Operation, writeIndex uint64) (results []cdt.Result, found bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns a copy of the record.
	// The boolean return value indicates whether the record was found.
	Get(key Key) (record Record, loaded bool)

	// Has checks whether a record exists in the database.
	Has(key Key) (loaded bool)

	// Scan calls fn for the key of every record in set until fn returns false.
	// An empty set scans all records. Records that are written concurrently may or may
	// not be visited.
	Scan(set string, fn func(key Key) bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database .
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
