package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
)

// DBFactory is a function that creates a new instance of a RecordDB implementation
type DBFactory func() db.RecordDB

// RunRecordDBTests runs a comprehensive test suite for a RecordDB implementation.
func RunRecordDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("OperateOrdered", func(t *testing.T) {
			testOperateOrdered(t, factory())
		})

		t.Run("OperateAtomic", func(t *testing.T) {
			testOperateAtomic(t, factory())
		})

		t.Run("OperateMissingRecord", func(t *testing.T) {
			testOperateMissingRecord(t, factory())
		})

		t.Run("OperateExisting", func(t *testing.T) {
			testOperateExisting(t, factory())
		})

		t.Run("OperateWithoutChange", func(t *testing.T) {
			testOperateWithoutChange(t, factory())
		})

		t.Run("ConcurrentOperate", func(t *testing.T) {
			testConcurrentOperate(t, factory())
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.RecordDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// segmentBins creates a single bin "u" with n segments (id i, hour base+i)
func segmentBins(n int, base int64) map[string]*cdt.Map {
	m := cdt.NewMap()
	for i := 0; i < n; i++ {
		m.Set(int64(i), cdt.NewEntry(base+int64(i)))
	}
	return map[string]*cdt.Map{"u": m}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	key := db.NewKey("test", "u1")
	database.Put(key, segmentBins(10, 100), 1)

	rec, exists := database.Get(key)
	if !exists {
		t.Fatalf("Expected record %s to exist after Put", key)
	}
	if rec.Bin("u").Len() != 10 {
		t.Errorf("Expected 10 segments, got %d", rec.Bin("u").Len())
	}
	if rec.Key != key {
		t.Errorf("Expected key %s, got %s", key, rec.Key)
	}
	if rec.Generation != 1 {
		t.Errorf("Expected generation 1, got %d", rec.Generation)
	}

	// Get must return a copy
	rec.Bin("u").Set(999, cdt.NewEntry(1))
	again, _ := database.Get(key)
	if again.Bin("u").Len() != 10 {
		t.Errorf("Get should return a copy, not a reference to the stored bins")
	}

	// Put must copy the given bins
	bins := segmentBins(3, 0)
	database.Put(key, bins, 2)
	bins["u"].Set(999, cdt.NewEntry(1))
	again, _ = database.Get(key)
	if again.Bin("u").Len() != 3 {
		t.Errorf("Put should copy the bins, got %d segments", again.Bin("u").Len())
	}

	// bins that are not named are kept
	database.Put(key, map[string]*cdt.Map{"v": cdt.NewMap()}, 3)
	again, _ = database.Get(key)
	if again.Bin("u") == nil || again.Bin("v") == nil {
		t.Errorf("Expected both bins after a second Put, got %v", again.Bins)
	}
	if again.Generation != 3 {
		t.Errorf("Expected generation 3, got %d", again.Generation)
	}

	if _, exists = database.Get(db.NewKey("test", "nonexistent")); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testDelete(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	key := db.NewKey("test", "delete-me")
	database.Put(key, segmentBins(1, 0), 1)
	database.Delete(key, 2)

	if _, exists := database.Get(key); exists {
		t.Errorf("Record should not exist after Delete")
	}

	// deleting a missing record is a no-op
	database.Delete(key, 3)
	database.Delete(db.NewKey("test", "never-existed"), 4)
}

func testHas(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureHas)

	key := db.NewKey("test", "has")
	if database.Has(key) {
		t.Errorf("Has should return false before Put")
	}

	// an empty map is a valid state, the record exists
	database.Put(key, map[string]*cdt.Map{"u": cdt.NewMap()}, 1)
	if !database.Has(key) {
		t.Errorf("Has should return true after Put")
	}

	// the same user key in another set is another record
	if database.Has(db.NewKey("other", "has")) {
		t.Errorf("Has should distinguish sets")
	}
}

func testOperateOrdered(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureOperate|db.FeatureGet)

	key := db.NewKey("test", "ordered")
	results, err := database.Operate(key, []cdt.Operation{
		cdt.GetByKey("u", 1, cdt.ReturnValue),
		cdt.Put("u", 1, cdt.NewEntry(10)),
		cdt.GetByKey("u", 1, cdt.ReturnValue),
		cdt.Size("u"),
	}, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	if results[0].Found() {
		t.Errorf("First get should see no entry, got %v", results[0])
	}
	if e, ok := results[2].Entry(); !ok || e.Hour != 10 {
		t.Errorf("Second get should see the put, got %v", results[2])
	}
	if results[3].Count != 1 {
		t.Errorf("Expected size 1, got %d", results[3].Count)
	}

	rec, exists := database.Get(key)
	if !exists || rec.Generation != 1 {
		t.Errorf("Expected record with generation 1, got %v %v", rec, exists)
	}
}

func testOperateAtomic(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureOperate|db.FeaturePut|db.FeatureGet)

	key := db.NewKey("test", "atomic")
	database.Put(key, segmentBins(5, 100), 1)

	_, err := database.Operate(key, []cdt.Operation{
		cdt.RemoveByValueRange("u", 0, 1000, cdt.ReturnNone, false),
		cdt.Increment("u", cdt.TTLPath(42), 1), // segment 42 doesn't exist
	}, 2)
	if err == nil {
		t.Fatalf("Expected an error for an increment of a missing segment")
	}

	rec, _ := database.Get(key)
	if rec.Bin("u").Len() != 5 {
		t.Errorf("Failed batch must not change the record, got %d segments", rec.Bin("u").Len())
	}
	if rec.Generation != 1 {
		t.Errorf("Failed batch must not change the generation, got %d", rec.Generation)
	}
}

func testOperateMissingRecord(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureOperate|db.FeatureHas)

	key := db.NewKey("test", "missing")
	results, err := database.Operate(key, []cdt.Operation{
		cdt.GetByKeyRange("u", 0, 100, cdt.ReturnCount),
		cdt.RemoveByValueRange("u", 0, 100, cdt.ReturnCount, false),
	}, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if results[0].Count != 0 || results[1].Count != 0 {
		t.Errorf("Expected empty results, got %v", results)
	}

	// the remove matched nothing, so the record is not created
	if database.Has(key) {
		t.Errorf("A remove that matched nothing must not create the record")
	}

	if _, err := database.Operate(key, []cdt.Operation{cdt.Put("u", 1, cdt.NewEntry(1))}, 2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !database.Has(key) {
		t.Errorf("Write operations create the record")
	}

	other := db.NewKey("test", "read-only")
	if _, err := database.Operate(other, []cdt.Operation{cdt.Size("u")}, 2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if database.Has(other) {
		t.Errorf("Read-only operations must not create a record")
	}
}

func testOperateExisting(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureOperate|db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	ops := []cdt.Operation{
		cdt.Put("u", 7, cdt.NewEntry(70)),
		cdt.Size("u"),
	}

	// a missing record is left alone
	missing := db.NewKey("test", "existing-missing")
	results, found, err := database.OperateExisting(missing, ops, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found || results != nil {
		t.Errorf("Expected no results for a missing record, got found=%v results=%v", found, results)
	}
	if _, ok := database.Get(missing); ok {
		t.Errorf("OperateExisting must not create a record")
	}

	// a deleted record stays deleted
	key := db.NewKey("test", "existing")
	database.Put(key, segmentBins(3, 100), 2)
	database.Delete(key, 3)
	if _, found, _ := database.OperateExisting(key, ops, 4); found {
		t.Errorf("A deleted record must not be found")
	}
	if _, ok := database.Get(key); ok {
		t.Errorf("OperateExisting must not recreate a deleted record")
	}

	// an existing record is updated
	database.Put(key, segmentBins(3, 100), 5)
	results, found, err = database.OperateExisting(key, ops, 6)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !found || len(results) != 2 || results[1].Count != 4 {
		t.Errorf("Expected the operations to be applied, got found=%v results=%v", found, results)
	}
}

func testOperateWithoutChange(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureOperate|db.FeaturePut|db.FeatureGet)

	key := db.NewKey("test", "unchanged")
	database.Put(key, segmentBins(5, 100), 1)

	// none of the segments expire before hour 0
	if _, err := database.Operate(key, []cdt.Operation{
		cdt.RemoveByValueRange("u", -1000, 0, cdt.ReturnNone, false),
	}, 2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rec, _ := database.Get(key)
	if rec.Generation != 1 {
		t.Errorf("A remove that matched nothing must not change the generation, got %d", rec.Generation)
	}
}

func testConcurrentOperate(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureOperate|db.FeaturePut|db.FeatureGet)

	key := db.NewKey("test", "counter")
	database.Put(key, segmentBins(1, 0), 1)

	numWorkers := 8
	perWorker := 250

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := database.Operate(key, []cdt.Operation{cdt.Increment("u", cdt.TTLPath(0), 1)}, 2); err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	rec, _ := database.Get(key)
	e, _ := rec.Bin("u").Get(0)
	if e.Hour != int64(numWorkers*perWorker) {
		t.Errorf("Lost updates: expected %d, got %d", numWorkers*perWorker, e.Hour)
	}
}

func testScan(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureScan|db.FeaturePut)

	for i := 0; i < 100; i++ {
		database.Put(db.NewKey("a", fmt.Sprintf("u%d", i)), segmentBins(1, 0), 1)
	}
	for i := 0; i < 30; i++ {
		database.Put(db.NewKey("b", fmt.Sprintf("u%d", i)), segmentBins(1, 0), 1)
	}

	seen := make(map[db.Key]bool)
	database.Scan("a", func(key db.Key) bool {
		if key.Set != "a" {
			t.Errorf("Scan of set a returned %s", key)
		}
		if seen[key] {
			t.Errorf("Key %s visited twice", key)
		}
		seen[key] = true
		return true
	})
	if len(seen) != 100 {
		t.Errorf("Expected 100 keys in set a, got %d", len(seen))
	}

	all := 0
	database.Scan("", func(db.Key) bool {
		all++
		return true
	})
	if all != 130 {
		t.Errorf("Expected 130 keys in total, got %d", all)
	}

	stopped := 0
	database.Scan("a", func(db.Key) bool {
		stopped++
		return stopped < 10
	})
	if stopped != 10 {
		t.Errorf("Scan should stop when fn returns false, visited %d", stopped)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numRecords := 500
	for i := 0; i < numRecords; i++ {
		bins := segmentBins(i%20, int64(i))
		e := cdt.Entry{Hour: 7, Meta: map[string]any{"clicks": int64(i), "tags": []any{"a", "b"}}}
		bins["u"].Set(1000, e)
		database.Put(db.NewKey("save", fmt.Sprintf("u%d", i)), bins, uint64(i+1))
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if database2.WriteIdx() != database.WriteIdx() {
		t.Errorf("Write index not restored: expected %d, got %d", database.WriteIdx(), database2.WriteIdx())
	}

	for i := 0; i < numRecords; i++ {
		key := db.NewKey("save", fmt.Sprintf("u%d", i))
		want, _ := database.Get(key)
		got, exists := database2.Get(key)
		if !exists {
			t.Errorf("Record %s not found after Load", key)
			continue
		}
		if !want.Bin("u").Equal(got.Bin("u")) {
			t.Errorf("Bin mismatch for %s", key)
		}
		if want.Generation != got.Generation || want.LastUpdate != got.LastUpdate {
			t.Errorf("Metadata mismatch for %s: %+v vs %+v", key, want, got)
		}
	}

	if err := database2.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Expected an error when loading garbage")
	}
}

func testWriteIdx(t *testing.T, database db.RecordDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	database.SetWriteIdx(5)
	if database.WriteIdx() != 10 {
		t.Errorf("Write index must be monotonic, got %d", database.WriteIdx())
	}

	requireFeature(t, database, db.FeaturePut)
	database.Put(db.NewKey("idx", "a"), nil, 20)
	if database.WriteIdx() != 20 {
		t.Errorf("Writes should advance the write index, got %d", database.WriteIdx())
	}

	info := database.GetInfo()
	if info.RecordCount != 1 {
		t.Errorf("Expected 1 record in info, got %d", info.RecordCount)
	}
}
