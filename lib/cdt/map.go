package cdt

import (
	"encoding/json"
	"sort"
)

// --------------------------------------------------------------------------
// Map (ordered segment map)
// --------------------------------------------------------------------------

// Map is an ordered mapping from segment id to Entry.
// Pairs are kept sorted by key, so key ranges and iteration are ordered without
// any extra index. An empty map is a valid state.
//
// Thread-safety: Map is not thread-safe. The storage engine guarantees exclusive
// access per record while operations are applied.
type Map struct {
	pairs []Pair
}

// NewMap creates an empty map
func NewMap() *Map {
	return &Map{pairs: make([]Pair, 0)}
}

// NewMapFrom creates a map from the given items
func NewMapFrom(items map[int64]Entry) *Map {
	m := &Map{pairs: make([]Pair, 0, len(items))}
	for k, v := range items {
		m.pairs = append(m.pairs, Pair{Key: k, Value: v})
	}
	sort.Slice(m.pairs, func(i, j int) bool { return m.pairs[i].Key < m.pairs[j].Key })
	return m
}

// find returns the position of key (or the insert position) and whether it exists
func (m *Map) find(key int64) (int, bool) {
	i := sort.Search(len(m.pairs), func(i int) bool { return m.pairs[i].Key >= key })
	return i, i < len(m.pairs) && m.pairs[i].Key == key
}

// Len returns the number of entries in the map
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Get returns the entry for key. The boolean is false if the key is absent.
func (m *Map) Get(key int64) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	i, ok := m.find(key)
	if !ok {
		return Entry{}, false
	}
	return m.pairs[i].Value, true
}

// Set inserts or overwrites the entry for key
func (m *Map) Set(key int64, e Entry) {
	i, ok := m.find(key)
	if ok {
		m.pairs[i].Value = e
		return
	}
	m.pairs = append(m.pairs, Pair{})
	copy(m.pairs[i+1:], m.pairs[i:])
	m.pairs[i] = Pair{Key: key, Value: e}
}

// Delete removes key from the map and returns the removed entry
func (m *Map) Delete(key int64) (Entry, bool) {
	i, ok := m.find(key)
	if !ok {
		return Entry{}, false
	}
	e := m.pairs[i].Value
	m.pairs = append(m.pairs[:i], m.pairs[i+1:]...)
	return e, true
}

// Range calls fn for every pair in key order until fn returns false
func (m *Map) Range(fn func(key int64, e Entry) bool) {
	if m == nil {
		return
	}
	for _, p := range m.pairs {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Pairs returns a copy of all pairs in key order
func (m *Map) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Items returns the content of the map as a plain go map
func (m *Map) Items() map[int64]Entry {
	out := make(map[int64]Entry, m.Len())
	m.Range(func(key int64, e Entry) bool {
		out[key] = e
		return true
	})
	return out
}

// Clone returns a deep copy of the map
func (m *Map) Clone() *Map {
	if m == nil {
		return NewMap()
	}
	out := &Map{pairs: make([]Pair, len(m.pairs))}
	for i, p := range m.pairs {
		out.pairs[i] = Pair{Key: p.Key, Value: p.Value.Clone()}
	}
	return out
}

// Equal reports whether both maps hold the same pairs
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	for i := range m.Len() {
		a, b := m.pairs[i], other.pairs[i]
		if a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// SizeBytes returns a rough estimate of the memory used by the map
func (m *Map) SizeBytes() int {
	size := 0
	m.Range(func(_ int64, e Entry) bool {
		size += 16 + 8*len(e.Meta) // key + hour, plus a guess per metadata field
		return true
	})
	return size
}

// --------------------------------------------------------------------------
// Serialization
// --------------------------------------------------------------------------

// MarshalJSON encodes the map as an ordered list of pairs
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.pairs)
}

// UnmarshalJSON decodes a list of pairs. Duplicate keys keep the last value.
func (m *Map) UnmarshalJSON(data []byte) error {
	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	m.pairs = make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return nil
}

// GobEncode encodes the map with the json representation
func (m *Map) GobEncode() ([]byte, error) {
	return m.MarshalJSON()
}

// GobDecode decodes a map encoded with GobEncode
func (m *Map) GobDecode(data []byte) error {
	return m.UnmarshalJSON(data)
}
