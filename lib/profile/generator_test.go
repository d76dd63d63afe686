package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore rejects writes of one key
type failingStore struct {
	store.IStore
	reject string
}

func (f *failingStore) Put(key db.Key, bins map[string]*cdt.Map) error {
	if key.UserKey == f.reject {
		return errors.New("transient write error")
	}
	return f.IStore.Put(key, bins)
}

func newStore() store.IStore {
	return lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
}

func testConfig() Config {
	return Config{
		Set:                "profiles",
		From:               1,
		To:                 21,
		SegmentsPerProfile: 50,
		Universe:           200,
		LowHour:            1000,
		HighHour:           1100,
		Seed:               42,
	}
}

func TestGeneratorBounds(t *testing.T) {
	s := newStore()
	cfg := testConfig()
	g, err := NewGenerator(s, cfg)
	require.NoError(t, err)

	report, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20), report.Written)
	assert.Zero(t, report.Failed)

	for id := cfg.From; id < cfg.To; id++ {
		rec, ok, err := s.Get(db.NewKey(cfg.Set, UserKey(id)))
		require.NoError(t, err)
		require.True(t, ok, "profile %d missing", id)

		m := rec.Bin(Bin)
		require.NotNil(t, m)
		assert.Equal(t, cfg.SegmentsPerProfile, m.Len())
		m.Range(func(key int64, e cdt.Entry) bool {
			assert.True(t, key >= 0 && key < cfg.Universe, "segment %d outside universe", key)
			assert.True(t, e.Hour >= cfg.LowHour && e.Hour < cfg.HighHour, "hour %d outside window", e.Hour)
			return true
		})
	}

	has, err := s.Has(db.NewKey(cfg.Set, UserKey(cfg.To)))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGeneratorSmallUniverse(t *testing.T) {
	cfg := testConfig()
	cfg.Universe = 10
	g, err := NewGenerator(newStore(), cfg)
	require.NoError(t, err)

	items := g.Profile()
	assert.Len(t, items, 10)
	for id := int64(0); id < 10; id++ {
		assert.Contains(t, items, id)
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	g1, err := NewGenerator(newStore(), testConfig())
	require.NoError(t, err)
	g2, err := NewGenerator(newStore(), testConfig())
	require.NoError(t, err)

	p1, p2 := g1.Profile(), g2.Profile()
	require.Len(t, p2, len(p1))
	for id, e := range p1 {
		other, ok := p2[id]
		require.True(t, ok)
		assert.Equal(t, e.Hour, other.Hour)
	}
}

func TestGeneratorContinuesAfterFailure(t *testing.T) {
	s := &failingStore{IStore: newStore(), reject: UserKey(3)}
	g, err := NewGenerator(s, testConfig())
	require.NoError(t, err)

	var failed []db.Key
	g.OnError = func(key db.Key, err error) { failed = append(failed, key) }
	written := 0
	g.OnWritten = func(db.Key) { written++ }

	report, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(19), report.Written)
	assert.Equal(t, int64(1), report.Failed)
	assert.Equal(t, 19, written)
	assert.Equal(t, []db.Key{db.NewKey("profiles", "u3")}, failed)

	has, err := s.Has(db.NewKey("profiles", UserKey(20)))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGeneratorCancel(t *testing.T) {
	g, err := NewGenerator(newStore(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := g.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, report.Written)
}

func TestConfigValidate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	def := DefaultConfig(now)
	require.NoError(t, def.Validate())
	assert.Equal(t, int64(100001), def.To)
	assert.Equal(t, HourOf(now)-179*24, def.LowHour)
	assert.Equal(t, HourOf(now)+28*24, def.HighHour)

	for _, mutate := range []func(*Config){
		func(c *Config) { c.To = c.From },
		func(c *Config) { c.SegmentsPerProfile = 0 },
		func(c *Config) { c.Universe = 0 },
		func(c *Config) { c.HighHour = c.LowHour },
	} {
		c := testConfig()
		mutate(&c)
		assert.Error(t, c.Validate())
		_, err := NewGenerator(newStore(), c)
		assert.Error(t, err)
	}
}
