package util

import (
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[uint64]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if _, ok := mh.Peek(); ok {
		t.Error("Peek on empty heap should return ok=false")
	}

	if _, ok := mh.PopMin(); ok {
		t.Error("PopMin on empty heap should return ok=false")
	}
}

// TestAddAndUpdateItem tests adding items and updating their priority
func TestAddAndUpdateItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("c", 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	min, _ := mh.Peek()
	if min.Key != "c" || min.Priority != 50 {
		t.Errorf("Expected min item to be (c,50), got %s", min)
	}

	// update an item so it becomes the new minimum
	mh.AddItem("b", 10)
	if mh.Len() != 3 {
		t.Errorf("Update must not add an item, heap has %d", mh.Len())
	}

	min, _ = mh.Peek()
	if min.Key != "b" || min.Priority != 10 {
		t.Errorf("Expected min item to be (b,10), got %s", min)
	}

	item, ok := mh.GetByKey("a")
	if !ok || item.Priority != 100 {
		t.Errorf("GetByKey returned incorrect item: %v %v", item, ok)
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[uint64]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 300)

	value, exists := mh.RemoveByKey(2)
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if value != 200 {
		t.Errorf("RemoveByKey should return value 200, got %d", value)
	}
	if mh.Contains(2) {
		t.Error("Heap should not contain key 2 after removal")
	}

	if _, exists = mh.RemoveByKey(99); exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in priority order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[uint64]()

	items := []struct {
		key      uint64
		priority uint64
	}{
		{5, 50}, {3, 30}, {1, 10}, {4, 40}, {2, 20},
	}
	for _, it := range items {
		mh.AddItem(it.key, it.priority)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].priority < items[j].priority })

	for i, expected := range items {
		item, ok := mh.PopMin()
		if !ok {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}
		if item.Key != expected.key || item.Priority != expected.priority {
			t.Errorf("Pop %d: expected (%d,%d), got %s", i, expected.key, expected.priority, item)
		}
		if mh.Contains(item.Key) {
			t.Errorf("Popped key %d is still indexed", item.Key)
		}
	}

	if mh.Len() != 0 {
		t.Errorf("Heap should be empty after popping all items, has %d items", mh.Len())
	}
}

// TestLargeNumberOfItems tests the heap invariant with many items
func TestLargeNumberOfItems(t *testing.T) {
	mh := NewMapHeap[int]()
	const n = 10000

	for i := 0; i < n; i++ {
		mh.AddItem(i, uint64((i*7919)%n))
	}
	for i := 0; i < n; i += 2 {
		mh.RemoveByKey(i)
	}

	var last uint64
	count := 0
	for mh.Len() > 0 {
		item, _ := mh.PopMin()
		if item.Priority < last {
			t.Fatalf("Heap order violated: %d after %d", item.Priority, last)
		}
		last = item.Priority
		count++
	}
	if count != n/2 {
		t.Errorf("Expected %d items, got %d", n/2, count)
	}
}
