package cdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Entry (value of one segment)
// --------------------------------------------------------------------------

// Entry is the value stored for one segment id.
// Hour is the expiration marker (hours since the epoch), Meta is opaque metadata that
// is carried along but never inspected by the selection logic.
type Entry struct {
	Hour int64          `json:"hour"`
	Meta map[string]any `json:"meta,omitempty"`
}

// NewEntry creates an entry with the given expiration hour and empty metadata
func NewEntry(hour int64) Entry {
	return Entry{Hour: hour, Meta: map[string]any{}}
}

// Clone returns a deep copy of the entry (metadata included)
func (e Entry) Clone() Entry {
	return Entry{
		Hour: e.Hour,
		Meta: deepCopyMeta(e.Meta),
	}
}

// Equal reports whether two entries have the same hour and the same metadata tree
func (e Entry) Equal(other Entry) bool {
	if e.Hour != other.Hour {
		return false
	}
	if len(e.Meta) != len(other.Meta) {
		return false
	}
	return treeEqual(e.Meta, other.Meta)
}

func (e Entry) String() string {
	return fmt.Sprintf("[%d, %v]", e.Hour, e.Meta)
}

// asList returns the list view [hour, meta] used for path addressing
func (e Entry) asList() []any {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return []any{e.Hour, meta}
}

// entryFromList converts the list view back into an entry
func entryFromList(list []any) (Entry, error) {
	if len(list) != 2 {
		return Entry{}, fmt.Errorf("entry must have 2 elements, got %d", len(list))
	}
	hour, ok := toInt64(list[0])
	if !ok {
		return Entry{}, fmt.Errorf("entry hour must be an integer, got %T", list[0])
	}
	meta, ok := list[1].(map[string]any)
	if !ok {
		return Entry{}, fmt.Errorf("entry metadata must be a map, got %T", list[1])
	}
	return Entry{Hour: hour, Meta: meta}, nil
}

// UnmarshalJSON decodes an entry and normalizes metadata numbers:
// integral numbers become int64, everything else float64.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hour int64          `json:"hour"`
		Meta map[string]any `json:"meta"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	e.Hour = raw.Hour
	e.Meta = nil
	if raw.Meta != nil {
		e.Meta = normalizeJSON(raw.Meta).(map[string]any)
	}
	return nil
}

// GobEncode encodes the entry as JSON since gob can't carry the open metadata tree
func (e Entry) GobEncode() ([]byte, error) {
	return json.Marshal(e)
}

// GobDecode decodes an entry encoded by GobEncode
func (e *Entry) GobDecode(data []byte) error {
	return e.UnmarshalJSON(data)
}

// --------------------------------------------------------------------------
// Pair (key + entry)
// --------------------------------------------------------------------------

// Pair is one segment id with its entry
type Pair struct {
	Key   int64 `json:"key"`
	Value Entry `json:"value"`
}

// --------------------------------------------------------------------------
// Return Kinds
// --------------------------------------------------------------------------

// ReturnKind selects which view of the selected entries an operation produces
type ReturnKind uint8

const (
	ReturnNone     ReturnKind = iota // Nothing is returned
	ReturnCount                      // Only the number of selected entries
	ReturnKey                        // The selected segment ids
	ReturnValue                      // The selected entries
	ReturnKeyValue                   // The selected (id, entry) pairs
)

func (rk ReturnKind) String() string {
	switch rk {
	case ReturnNone:
		return "none"
	case ReturnCount:
		return "count"
	case ReturnKey:
		return "key"
	case ReturnValue:
		return "value"
	case ReturnKeyValue:
		return "key_value"
	default:
		return fmt.Sprintf("unknown(%d)", rk)
	}
}

// ParseReturnKind parses the string representation of a ReturnKind
func ParseReturnKind(s string) (ReturnKind, error) {
	switch s {
	case "none":
		return ReturnNone, nil
	case "count":
		return ReturnCount, nil
	case "key", "keys":
		return ReturnKey, nil
	case "value", "values":
		return ReturnValue, nil
	case "key_value", "kv":
		return ReturnKeyValue, nil
	default:
		return ReturnNone, fmt.Errorf("invalid return kind %q (expected one of none, count, key, value, key_value)", s)
	}
}

// --------------------------------------------------------------------------
// Tree helpers (metadata is an open tree of maps, lists and scalars)
// --------------------------------------------------------------------------

// deepCopyMeta copies a metadata map recursively
func deepCopyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return deepCopy(m).(map[string]any)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return t
	}
}

func treeEqual(a, b any) bool {
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !treeEqual(va, vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !treeEqual(ta[i], tb[i]) {
				return false
			}
		}
		return true
	default:
		if ia, ok := toInt64(a); ok {
			ib, ok := toInt64(b)
			return ok && ia == ib
		}
		return a == b
	}
}

// normalizeJSON converts json.Number leafs produced by a UseNumber decoder
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeJSON(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeJSON(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return t
	}
}

// toInt64 converts integral numeric leafs to int64
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	}
	return 0, false
}
