package cdt

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Operation Types
// --------------------------------------------------------------------------

// OpType defines the possible operations on a segment map bin
type OpType uint8

const (
	OpTGetByKey           OpType = iota // Read one entry by segment id
	OpTGetByValue                       // Read entries with an exact hour (metadata wildcard)
	OpTGetByValueRange                  // Read entries with low <= hour < high
	OpTGetByKeyRange                    // Read entries with low <= id < high
	OpTPut                              // Insert or overwrite one entry
	OpTPutItems                         // Insert or overwrite many entries
	OpTRemoveByKey                      // Remove one entry by segment id
	OpTRemoveByValueRange               // Remove entries with low <= hour < high
	OpTRemoveByKeyRange                 // Remove entries with low <= id < high
	OpTSize                             // Number of entries
	OpTIncrement                        // Add a delta to an integer field addressed by a path
	OpTClear                            // Remove all entries
)

func (t OpType) String() string {
	switch t {
	case OpTGetByKey:
		return "GetByKey"
	case OpTGetByValue:
		return "GetByValue"
	case OpTGetByValueRange:
		return "GetByValueRange"
	case OpTGetByKeyRange:
		return "GetByKeyRange"
	case OpTPut:
		return "Put"
	case OpTPutItems:
		return "PutItems"
	case OpTRemoveByKey:
		return "RemoveByKey"
	case OpTRemoveByValueRange:
		return "RemoveByValueRange"
	case OpTRemoveByKeyRange:
		return "RemoveByKeyRange"
	case OpTSize:
		return "Size"
	case OpTIncrement:
		return "Increment"
	case OpTClear:
		return "Clear"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// IsWrite reports whether the operation can modify the map
func (t OpType) IsWrite() bool {
	switch t {
	case OpTPut, OpTPutItems, OpTRemoveByKey, OpTRemoveByValueRange, OpTRemoveByKeyRange, OpTIncrement, OpTClear:
		return true
	default:
		return false
	}
}

// removesOnly reports whether the operation can only delete entries
func (t OpType) removesOnly() bool {
	switch t {
	case OpTRemoveByKey, OpTRemoveByValueRange, OpTRemoveByKeyRange, OpTClear:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Operation
// --------------------------------------------------------------------------

// Operation describes one call against a segment map bin.
// Which fields are used depends on the type of the operation.
type Operation struct {
	Type       OpType          `json:"type"`
	Bin        string          `json:"bin"`
	Key        int64           `json:"key,omitempty"`      // Used for: GetByKey, Put, RemoveByKey
	Entry      Entry           `json:"entry"`              // Used for: Put
	Items      map[int64]Entry `json:"items,omitempty"`    // Used for: PutItems
	Low        int64           `json:"low,omitempty"`      // Used for: range operations (inclusive), GetByValue
	High       int64           `json:"high,omitempty"`     // Used for: range operations (exclusive)
	ReturnKind ReturnKind      `json:"return,omitempty"`   // Used for: get and remove operations
	Inverted   bool            `json:"inverted,omitempty"` // Used for: value/key range operations
	Path       []PathStep      `json:"path,omitempty"`     // Used for: Increment
	Delta      int64           `json:"delta,omitempty"`    // Used for: Increment
}

func (op Operation) String() string {
	switch op.Type {
	case OpTGetByKey, OpTRemoveByKey:
		return fmt.Sprintf("%s(%s, %d, %s)", op.Type, op.Bin, op.Key, op.ReturnKind)
	case OpTPut:
		return fmt.Sprintf("%s(%s, %d, %s)", op.Type, op.Bin, op.Key, op.Entry)
	case OpTPutItems:
		return fmt.Sprintf("%s(%s, %d items)", op.Type, op.Bin, len(op.Items))
	case OpTGetByValue:
		return fmt.Sprintf("%s(%s, %d, %s)", op.Type, op.Bin, op.Low, op.ReturnKind)
	case OpTGetByValueRange, OpTGetByKeyRange, OpTRemoveByValueRange, OpTRemoveByKeyRange:
		return fmt.Sprintf("%s(%s, [%d, %d), %s, inverted=%t)", op.Type, op.Bin, op.Low, op.High, op.ReturnKind, op.Inverted)
	case OpTIncrement:
		return fmt.Sprintf("%s(%s, %s, %+d)", op.Type, op.Bin, FormatPath(op.Path), op.Delta)
	default:
		return fmt.Sprintf("%s(%s)", op.Type, op.Bin)
	}
}

// GetByKey returns the entry of one segment
func GetByKey(bin string, key int64, rk ReturnKind) Operation {
	return Operation{Type: OpTGetByKey, Bin: bin, Key: key, ReturnKind: rk}
}

// GetByValue returns all entries with the given hour
func GetByValue(bin string, hour int64, rk ReturnKind) Operation {
	return Operation{Type: OpTGetByValue, Bin: bin, Low: hour, ReturnKind: rk}
}

// GetByValueRange returns all entries with low <= hour < high (or the complement if inverted)
func GetByValueRange(bin string, low, high int64, rk ReturnKind, inverted bool) Operation {
	return Operation{Type: OpTGetByValueRange, Bin: bin, Low: low, High: high, ReturnKind: rk, Inverted: inverted}
}

// GetByKeyRange returns all entries with low <= id < high
func GetByKeyRange(bin string, low, high int64, rk ReturnKind) Operation {
	return Operation{Type: OpTGetByKeyRange, Bin: bin, Low: low, High: high, ReturnKind: rk}
}

// Put inserts or overwrites one entry
func Put(bin string, key int64, e Entry) Operation {
	return Operation{Type: OpTPut, Bin: bin, Key: key, Entry: e}
}

// PutItems inserts or overwrites all given entries
func PutItems(bin string, items map[int64]Entry) Operation {
	return Operation{Type: OpTPutItems, Bin: bin, Items: items}
}

// RemoveByKey removes one entry
func RemoveByKey(bin string, key int64, rk ReturnKind) Operation {
	return Operation{Type: OpTRemoveByKey, Bin: bin, Key: key, ReturnKind: rk}
}

// RemoveByValueRange removes all entries with low <= hour < high (or the complement if inverted)
func RemoveByValueRange(bin string, low, high int64, rk ReturnKind, inverted bool) Operation {
	return Operation{Type: OpTRemoveByValueRange, Bin: bin, Low: low, High: high, ReturnKind: rk, Inverted: inverted}
}

// RemoveByKeyRange removes all entries with low <= id < high
func RemoveByKeyRange(bin string, low, high int64, rk ReturnKind) Operation {
	return Operation{Type: OpTRemoveByKeyRange, Bin: bin, Low: low, High: high, ReturnKind: rk}
}

// Size returns the number of entries
func Size(bin string) Operation {
	return Operation{Type: OpTSize, Bin: bin}
}

// Increment adds delta to the integer field addressed by path
func Increment(bin string, path []PathStep, delta int64) Operation {
	return Operation{Type: OpTIncrement, Bin: bin, Path: path, Delta: delta}
}

// Clear removes all entries
func Clear(bin string) Operation {
	return Operation{Type: OpTClear, Bin: bin}
}

// --------------------------------------------------------------------------
// Result
// --------------------------------------------------------------------------

// Result is the outcome of one Operation.
// Which fields are set depends on the ReturnKind: Count is set for every kind except
// ReturnNone, Keys for ReturnKey, Values for ReturnValue and Pairs for ReturnKeyValue.
// Put, PutItems, Size and Clear report the map size in Count, Increment the new value.
type Result struct {
	Op     OpType     `json:"op"`
	Bin    string     `json:"bin"`
	Kind   ReturnKind `json:"kind"`
	Count  int        `json:"count"`
	Keys   []int64    `json:"keys,omitempty"`
	Values []Entry    `json:"values,omitempty"`
	Pairs  []Pair     `json:"pairs,omitempty"`
	Number int64      `json:"number,omitempty"`
}

// Found reports whether the operation selected at least one entry
func (r Result) Found() bool {
	return r.Count > 0
}

// Entry returns the first selected entry (for single key lookups)
func (r Result) Entry() (Entry, bool) {
	switch {
	case len(r.Values) > 0:
		return r.Values[0], true
	case len(r.Pairs) > 0:
		return r.Pairs[0].Value, true
	default:
		return Entry{}, false
	}
}

func (r Result) String() string {
	switch r.Kind {
	case ReturnKey:
		return fmt.Sprintf("%s: %v", r.Op, r.Keys)
	case ReturnValue:
		return fmt.Sprintf("%s: %v", r.Op, r.Values)
	case ReturnKeyValue:
		return fmt.Sprintf("%s: %v", r.Op, r.Pairs)
	case ReturnCount:
		return fmt.Sprintf("%s: %d", r.Op, r.Count)
	default:
		if r.Op == OpTIncrement {
			return fmt.Sprintf("%s: %d", r.Op, r.Number)
		}
		return r.Op.String()
	}
}

// --------------------------------------------------------------------------
// Map operation engine (pure functions on one Map)
// --------------------------------------------------------------------------

// GetByKey returns the requested view of the entry for key (empty if absent)
func (m *Map) GetByKey(key int64, rk ReturnKind) Result {
	return m.selectEntries(func(k int64, _ Entry) bool { return k == key }, rk, false, orderByKey)
}

// GetByValue returns all entries whose hour equals hour
func (m *Map) GetByValue(hour int64, rk ReturnKind) Result {
	return m.selectEntries(hourEquals(hour), rk, false, orderByValue)
}

// GetByValueRange returns all entries with low <= hour < high, ordered by hour
func (m *Map) GetByValueRange(low, high int64, rk ReturnKind, inverted bool) Result {
	return m.selectEntries(hourRange(low, high, inverted), rk, false, orderByValue)
}

// GetByKeyRange returns all entries with low <= id < high, ordered by id
func (m *Map) GetByKeyRange(low, high int64, rk ReturnKind) Result {
	return m.selectEntries(keyRange(low, high, false), rk, false, orderByKey)
}

// RemoveByKey removes the entry for key and returns the requested view of it
func (m *Map) RemoveByKey(key int64, rk ReturnKind) Result {
	return m.selectEntries(func(k int64, _ Entry) bool { return k == key }, rk, true, orderByKey)
}

// RemoveByValueRange removes all entries with low <= hour < high (or the complement)
func (m *Map) RemoveByValueRange(low, high int64, rk ReturnKind, inverted bool) Result {
	return m.selectEntries(hourRange(low, high, inverted), rk, true, orderByValue)
}

// RemoveByKeyRange removes all entries with low <= id < high
func (m *Map) RemoveByKeyRange(low, high int64, rk ReturnKind) Result {
	return m.selectEntries(keyRange(low, high, false), rk, true, orderByKey)
}

// PutEntry inserts or overwrites one entry and returns the new size
func (m *Map) PutEntry(key int64, e Entry) Result {
	m.Set(key, e.Clone())
	return Result{Kind: ReturnCount, Count: m.Len()}
}

// PutItems inserts or overwrites all items and returns the new size
func (m *Map) PutItems(items map[int64]Entry) Result {
	for k, e := range items {
		m.Set(k, e.Clone())
	}
	return Result{Kind: ReturnCount, Count: m.Len()}
}

// Increment adds delta to the integer leaf addressed by path
func (m *Map) Increment(path []PathStep, delta int64) (Result, error) {
	n, err := incrementPath(m, path, delta)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: ReturnNone, Number: n}, nil
}

// apply executes one operation against m
func (m *Map) apply(op Operation) (Result, error) {
	if op.ReturnKind > ReturnKeyValue {
		return Result{}, fmt.Errorf("invalid return kind %d", op.ReturnKind)
	}

	switch op.Type {
	case OpTGetByKey:
		return m.GetByKey(op.Key, op.ReturnKind), nil
	case OpTGetByValue:
		return m.GetByValue(op.Low, op.ReturnKind), nil
	case OpTGetByValueRange:
		return m.GetByValueRange(op.Low, op.High, op.ReturnKind, op.Inverted), nil
	case OpTGetByKeyRange:
		return m.GetByKeyRange(op.Low, op.High, op.ReturnKind), nil
	case OpTPut:
		return m.PutEntry(op.Key, op.Entry), nil
	case OpTPutItems:
		return m.PutItems(op.Items), nil
	case OpTRemoveByKey:
		return m.RemoveByKey(op.Key, op.ReturnKind), nil
	case OpTRemoveByValueRange:
		return m.RemoveByValueRange(op.Low, op.High, op.ReturnKind, op.Inverted), nil
	case OpTRemoveByKeyRange:
		return m.RemoveByKeyRange(op.Low, op.High, op.ReturnKind), nil
	case OpTSize:
		return Result{Kind: ReturnCount, Count: m.Len()}, nil
	case OpTIncrement:
		return m.Increment(op.Path, op.Delta)
	case OpTClear:
		m.pairs = m.pairs[:0]
		return Result{Kind: ReturnCount, Count: 0}, nil
	default:
		return Result{}, fmt.Errorf("unknown operation %s", op.Type)
	}
}

// --------------------------------------------------------------------------
// Atomic application of an operation sequence
// --------------------------------------------------------------------------

// Outcome is the result of Apply
type Outcome struct {
	Bins     map[string]*Map // The bins after all operations (untouched bins are shared with the input)
	Results  []Result        // One result per operation, in submission order
	Modified bool            // Whether any operation changed a bin (a remove that matched nothing doesn't)
}

// Apply runs ops in order against the bins of one record.
// Every bin that is written is cloned first, so the input bins are never modified.
// If any operation fails the error is returned and no outcome is produced, which makes
// the sequence all-or-nothing. Operations see the effects of earlier operations in the
// same sequence. A bin that does not exist reads as an empty map and is created by the
// first write.
func Apply(bins map[string]*Map, ops []Operation) (Outcome, error) {
	working := make(map[string]*Map, len(bins)+1)
	for name, m := range bins {
		working[name] = m
	}
	cloned := make(map[string]bool)

	results := make([]Result, len(ops))
	modified := false

	for i, op := range ops {
		if op.Bin == "" {
			return Outcome{}, fmt.Errorf("operation %d (%s): bin name is empty", i, op.Type)
		}

		m := working[op.Bin]
		if op.Type.IsWrite() {
			if !cloned[op.Bin] {
				m = m.Clone()
				working[op.Bin] = m
				cloned[op.Bin] = true
			}
		} else if m == nil {
			m = NewMap()
		}

		before := m.Len()
		res, err := m.apply(op)
		if err != nil {
			return Outcome{}, fmt.Errorf("operation %d (%s): %w", i, op.Type, err)
		}
		if op.Type.IsWrite() && (!op.Type.removesOnly() || m.Len() != before) {
			modified = true
		}
		res.Op = op.Type
		res.Bin = op.Bin
		results[i] = res
	}

	return Outcome{
		Bins:     working,
		Results:  results,
		Modified: modified,
	}, nil
}

// LastPerBin reduces ordered results to the last result of each bin.
// This is the unordered result view of an operation sequence.
func LastPerBin(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Bin] = r
	}
	return out
}
