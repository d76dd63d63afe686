package cdt

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Path Steps (structural addressing inside a bin)
// --------------------------------------------------------------------------

// StepKind identifies how a PathStep selects the next node
type StepKind uint8

const (
	StepSegment   StepKind = iota // Select an entry of the segment map by segment id
	StepMetaKey                   // Select a value of a metadata map by key
	StepListIndex                 // Select an element of a list by index (negative counts from the end)
)

func (k StepKind) String() string {
	switch k {
	case StepSegment:
		return "segment"
	case StepMetaKey:
		return "key"
	case StepListIndex:
		return "index"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// PathStep is one step of a path from the bin root to a leaf.
// An entry is addressed as the list [hour, meta], so the path
// [SegmentKey(id), ListIndex(0)] points at the expiration hour of segment id.
type PathStep struct {
	Kind  StepKind `json:"kind"`
	ID    int64    `json:"id,omitempty"`    // Used for StepSegment
	Key   string   `json:"key,omitempty"`   // Used for StepMetaKey
	Index int      `json:"index,omitempty"` // Used for StepListIndex
}

// SegmentKey creates a step that selects the entry of a segment
func SegmentKey(id int64) PathStep {
	return PathStep{Kind: StepSegment, ID: id}
}

// MetaKey creates a step that selects a key of a metadata map
func MetaKey(key string) PathStep {
	return PathStep{Kind: StepMetaKey, Key: key}
}

// ListIndex creates a step that selects a list element
func ListIndex(index int) PathStep {
	return PathStep{Kind: StepListIndex, Index: index}
}

// TTLPath returns the path to the expiration hour of a segment
func TTLPath(id int64) []PathStep {
	return []PathStep{SegmentKey(id), ListIndex(0)}
}

func (s PathStep) String() string {
	switch s.Kind {
	case StepSegment:
		return "#" + strconv.FormatInt(s.ID, 10)
	case StepMetaKey:
		return "." + s.Key
	case StepListIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	default:
		return "?"
	}
}

// FormatPath renders a path like "#42[1].clicks"
func FormatPath(path []PathStep) string {
	var sb strings.Builder
	for _, s := range path {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// ParsePath parses the FormatPath representation.
// "#<id>" selects a segment, "[<i>]" a list index and ".<key>" a metadata key.
func ParsePath(s string) ([]PathStep, error) {
	var path []PathStep
	for len(s) > 0 {
		switch s[0] {
		case '#', '.':
			end := strings.IndexAny(s[1:], "#.[")
			if end < 0 {
				end = len(s) - 1
			}
			token := s[1 : end+1]
			if token == "" {
				return nil, fmt.Errorf("empty path token in %q", s)
			}
			if s[0] == '#' {
				id, err := strconv.ParseInt(token, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid segment id %q: %w", token, err)
				}
				path = append(path, SegmentKey(id))
			} else {
				path = append(path, MetaKey(token))
			}
			s = s[end+1:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index in %q", s)
			}
			idx, err := strconv.Atoi(s[1:end])
			if err != nil {
				return nil, fmt.Errorf("invalid list index %q: %w", s[1:end], err)
			}
			path = append(path, ListIndex(idx))
			s = s[end+1:]
		default:
			return nil, fmt.Errorf("unexpected character %q in path", s[0])
		}
	}
	return path, nil
}

// --------------------------------------------------------------------------
// Tree walk
// --------------------------------------------------------------------------

// incrementPath adds delta to the integer leaf addressed by path inside m.
// The first step must select a segment; the remaining steps walk the list view of
// the entry. It returns the new leaf value.
func incrementPath(m *Map, path []PathStep, delta int64) (int64, error) {
	if len(path) < 2 {
		return 0, fmt.Errorf("path %q is too short, it must select a segment and a field", FormatPath(path))
	}
	if path[0].Kind != StepSegment {
		return 0, fmt.Errorf("path %q must start with a segment step", FormatPath(path))
	}

	entry, ok := m.Get(path[0].ID)
	if !ok {
		return 0, fmt.Errorf("segment %d not found", path[0].ID)
	}

	// work on a copy so a failing walk leaves the entry untouched
	root := entry.Clone().asList()
	updated, result, err := incrementNode(root, path[1:], delta)
	if err != nil {
		return 0, fmt.Errorf("path %q: %w", FormatPath(path), err)
	}

	newEntry, err := entryFromList(updated.([]any))
	if err != nil {
		return 0, fmt.Errorf("path %q: %w", FormatPath(path), err)
	}
	m.Set(path[0].ID, newEntry)
	return result, nil
}

// incrementNode walks node along path and returns the updated node and new leaf value
func incrementNode(node any, path []PathStep, delta int64) (any, int64, error) {
	if len(path) == 0 {
		n, ok := toInt64(node)
		if !ok {
			return nil, 0, fmt.Errorf("leaf is not an integer (%T)", node)
		}
		return n + delta, n + delta, nil
	}

	step := path[0]
	switch step.Kind {
	case StepListIndex:
		list, ok := node.([]any)
		if !ok {
			return nil, 0, fmt.Errorf("step %s expects a list, found %T", step, node)
		}
		idx := step.Index
		if idx < 0 {
			idx += len(list)
		}
		if idx < 0 || idx >= len(list) {
			return nil, 0, fmt.Errorf("step %s is out of range (len %d)", step, len(list))
		}
		child, n, err := incrementNode(list[idx], path[1:], delta)
		if err != nil {
			return nil, 0, err
		}
		list[idx] = child
		return list, n, nil

	case StepMetaKey:
		meta, ok := node.(map[string]any)
		if !ok {
			return nil, 0, fmt.Errorf("step %s expects a map, found %T", step, node)
		}
		value, ok := meta[step.Key]
		if !ok {
			return nil, 0, fmt.Errorf("step %s: key not found", step)
		}
		child, n, err := incrementNode(value, path[1:], delta)
		if err != nil {
			return nil, 0, err
		}
		meta[step.Key] = child
		return meta, n, nil

	default:
		return nil, 0, fmt.Errorf("step %s is only valid at the start of a path", step)
	}
}
