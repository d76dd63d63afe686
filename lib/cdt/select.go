package cdt

import "sort"

// --------------------------------------------------------------------------
// Selection primitive shared by all get/remove variants
// --------------------------------------------------------------------------

// predicate decides whether a pair is selected
type predicate func(key int64, e Entry) bool

// selectOrder defines in which order selected pairs are reported
type selectOrder uint8

const (
	orderByKey   selectOrder = iota // Ascending segment id
	orderByValue                    // Ascending (hour, segment id)
)

// hourRange selects entries with low <= hour < high (metadata acts as wildcard)
func hourRange(low, high int64, inverted bool) predicate {
	return func(_ int64, e Entry) bool {
		in := e.Hour >= low && e.Hour < high
		return in != inverted
	}
}

// keyRange selects entries with low <= key < high
func keyRange(low, high int64, inverted bool) predicate {
	return func(key int64, _ Entry) bool {
		in := key >= low && key < high
		return in != inverted
	}
}

// hourEquals selects entries with the given hour
func hourEquals(hour int64) predicate {
	return func(_ int64, e Entry) bool {
		return e.Hour == hour
	}
}

// selectEntries walks m once, collects every pair matching pred and builds the
// requested view of the selection. If remove is set the selected pairs are
// deleted from m in the same pass.
func (m *Map) selectEntries(pred predicate, rk ReturnKind, remove bool, order selectOrder) Result {
	var selected []Pair

	if remove {
		kept := m.pairs[:0]
		for _, p := range m.pairs {
			if pred(p.Key, p.Value) {
				selected = append(selected, p)
			} else {
				kept = append(kept, p)
			}
		}
		// clear the tail so removed entries can be collected
		for i := len(kept); i < len(m.pairs); i++ {
			m.pairs[i] = Pair{}
		}
		m.pairs = kept
	} else {
		for _, p := range m.pairs {
			if pred(p.Key, p.Value) {
				selected = append(selected, Pair{Key: p.Key, Value: p.Value.Clone()})
			}
		}
	}

	if order == orderByValue {
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].Value.Hour < selected[j].Value.Hour
		})
	}

	return buildResult(selected, rk)
}

// buildResult converts the selected pairs into the requested view
func buildResult(selected []Pair, rk ReturnKind) Result {
	res := Result{Kind: rk}
	switch rk {
	case ReturnNone:
	case ReturnCount:
		res.Count = len(selected)
	case ReturnKey:
		res.Count = len(selected)
		res.Keys = make([]int64, len(selected))
		for i, p := range selected {
			res.Keys[i] = p.Key
		}
	case ReturnValue:
		res.Count = len(selected)
		res.Values = make([]Entry, len(selected))
		for i, p := range selected {
			res.Values[i] = p.Value
		}
	case ReturnKeyValue:
		res.Count = len(selected)
		res.Pairs = selected
		if res.Pairs == nil {
			res.Pairs = []Pair{}
		}
	}
	return res
}
