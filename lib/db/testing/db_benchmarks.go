package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
)

// RunRecordDBBenchmarks runs all benchmarks for a record database implementation
func RunRecordDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("OperateRead", func(b *testing.B) {
		benchmarkOperateRead(b, factory())
	})

	b.Run("OperateRemoveRange", func(b *testing.B) {
		benchmarkOperateRemoveRange(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// profileKeys fills the database with n profiles of 100 segments each
func profileKeys(database db.RecordDB, n int) []db.Key {
	keys := make([]db.Key, n)
	for i := range keys {
		keys[i] = db.NewKey("bench", fmt.Sprintf("u%d", i))
		database.Put(keys[i], segmentBins(100, int64(i%50)), uint64(i+1))
	}
	return keys
}

// Benchmark for Put with a profile sized map
func benchmarkPut(b *testing.B, database db.RecordDB) {
	defer database.Close()
	requireFeature(b, database, db.FeaturePut)

	bins := segmentBins(100, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Put(db.NewKey("bench", fmt.Sprintf("u%d", i)), bins, uint64(i+1))
	}
}

// Benchmark for Get of existing profiles
func benchmarkGet(b *testing.B, database db.RecordDB) {
	defer database.Close()
	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	keys := profileKeys(database, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Get(keys[i%len(keys)])
	}
}

// Benchmark for a read-only value range query
func benchmarkOperateRead(b *testing.B, database db.RecordDB) {
	defer database.Close()
	requireFeature(b, database, db.FeaturePut|db.FeatureOperate)

	keys := profileKeys(database, 1000)
	ops := []cdt.Operation{cdt.GetByValueRange("u", 10, 60, cdt.ReturnCount, false)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.Operate(keys[i%len(keys)], ops, 0); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for the eviction operation (every record is refilled before it is trimmed again)
func benchmarkOperateRemoveRange(b *testing.B, database db.RecordDB) {
	defer database.Close()
	requireFeature(b, database, db.FeaturePut|db.FeatureOperate)

	key := db.NewKey("bench", "trim")
	bins := segmentBins(100, 0)
	ops := []cdt.Operation{cdt.RemoveByValueRange("u", 0, 50, cdt.ReturnNone, false)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		database.Put(key, bins, uint64(2*i+1))
		b.StartTimer()
		if _, err := database.Operate(key, ops, uint64(2*i+2)); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Save and Load
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	defer database.Close()
	requireFeature(b, database, db.FeaturePut|db.FeatureSave|db.FeatureLoad)

	profileKeys(database, 1000)

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatal(err)
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(snapshot.Bytes())); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// Benchmark for parallel mixed traffic (70% reads, 20% increments, 10% puts)
func benchmarkMixedUsage(b *testing.B, database db.RecordDB) {
	defer database.Close()
	requireFeature(b, database, db.FeaturePut|db.FeatureGet|db.FeatureOperate)

	keys := profileKeys(database, 1000)
	bins := segmentBins(10, 0)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := keys[r.Intn(len(keys))]
			switch n := r.Intn(10); {
			case n < 7:
				database.Get(key)
			case n < 9:
				_, _ = database.Operate(key, []cdt.Operation{cdt.Increment("u", cdt.TTLPath(0), 1)}, 0)
			default:
				database.Put(key, bins, 0)
			}
		}
	})
}
