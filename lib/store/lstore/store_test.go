package lstore

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() store.IStore {
	return NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
}

func seed(t *testing.T, s store.IStore, key db.Key) {
	t.Helper()
	err := s.Put(key, map[string]*cdt.Map{
		"u": cdt.NewMapFrom(map[int64]cdt.Entry{
			1: cdt.NewEntry(5),
			2: cdt.NewEntry(10),
			3: cdt.NewEntry(15),
		}),
	})
	require.NoError(t, err)
}

func TestPutGetDelete(t *testing.T) {
	s := newStore()
	key := db.NewKey("test", "u1")

	_, ok, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	seed(t, s, key)

	rec, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, rec.Bin("u").Len())
	assert.Equal(t, key, rec.Key)

	has, err := s.Has(key)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Delete(key))
	has, err = s.Has(key)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestOperateOrderedReadWriteRead(t *testing.T) {
	s := newStore()
	key := db.NewKey("test", "u1")
	seed(t, s, key)

	results, err := s.OperateOrdered(key, []cdt.Operation{
		cdt.GetByKey("u", 2, cdt.ReturnValue),
		cdt.Put("u", 2, cdt.NewEntry(99)),
		cdt.GetByKey("u", 2, cdt.ReturnValue),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	old, ok := results[0].Entry()
	require.True(t, ok)
	assert.Equal(t, int64(10), old.Hour)
	assert.Equal(t, 3, results[1].Count)
	updated, ok := results[2].Entry()
	require.True(t, ok)
	assert.Equal(t, int64(99), updated.Hour)
}

func TestOperateFailureLeavesRecordUntouched(t *testing.T) {
	s := newStore()
	key := db.NewKey("test", "u1")
	seed(t, s, key)

	_, err := s.OperateOrdered(key, []cdt.Operation{
		cdt.RemoveByValueRange("u", 0, 100, cdt.ReturnCount, false),
		cdt.Increment("u", cdt.TTLPath(42), 1), // missing segment
	})
	require.Error(t, err)
	assert.True(t, store.HasCode(err, store.RetCOpFailed))

	rec, _, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Bin("u").Len())
}

func TestOperateEmpty(t *testing.T) {
	s := newStore()
	_, err := s.OperateOrdered(db.NewKey("test", "u1"), nil)
	assert.True(t, store.HasCode(err, store.RetCInvalidOperation))
}

func TestOperateUnordered(t *testing.T) {
	s := newStore()
	key := db.NewKey("test", "u1")
	seed(t, s, key)

	results, err := s.Operate(key, []cdt.Operation{
		cdt.GetByValueRange("u", 0, 10, cdt.ReturnKey, false),
		cdt.Size("u"),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, cdt.OpTSize, results["u"].Op)
	assert.Equal(t, 3, results["u"].Count)
}

func TestReadOnlyOperateDoesNotCreate(t *testing.T) {
	s := newStore()
	key := db.NewKey("test", "ghost")

	results, err := s.OperateOrdered(key, []cdt.Operation{cdt.Size("u")})
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].Count)

	has, err := s.Has(key)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestScanKeys(t *testing.T) {
	s := newStore()
	seed(t, s, db.NewKey("a", "u1"))
	seed(t, s, db.NewKey("a", "u2"))
	seed(t, s, db.NewKey("b", "u1"))

	keys, err := s.ScanKeys("a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []db.Key{db.NewKey("a", "u1"), db.NewKey("a", "u2")}, keys)

	all, err := s.ScanKeys("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, 3, info.RecordCount)
}

func TestConcurrentIncrement(t *testing.T) {
	s := newStore()
	key := db.NewKey("test", "u1")
	seed(t, s, key)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := s.OperateOrdered(key, []cdt.Operation{cdt.Increment("u", cdt.TTLPath(1), 1)})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	results, err := s.OperateOrdered(key, []cdt.Operation{cdt.GetByKey("u", 1, cdt.ReturnValue)})
	require.NoError(t, err)
	e, _ := results[0].Entry()
	assert.Equal(t, int64(5+800), e.Hour)
}

func TestNewLocalStoreFromDB(t *testing.T) {
	database := maple.NewMapleDB(nil)
	database.SetWriteIdx(41)
	s := NewLocalStoreFromDB(database)

	require.NoError(t, s.Put(db.NewKey("test", "u1"), nil))
	assert.Equal(t, uint64(42), database.WriteIdx())
}
