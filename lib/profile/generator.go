package profile

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("profile")

const (
	DefaultUniverse           = 82000
	DefaultSegmentsPerProfile = 1000
	DefaultRange              = 100000
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config describes a population run
type Config struct {
	Set                string
	From, To           int64 // profile ids in [From, To)
	SegmentsPerProfile int   // distinct segments per profile
	Universe           int64 // segment ids are drawn from [0, Universe)
	LowHour, HighHour  int64 // expiration hours are drawn from [LowHour, HighHour)
	Seed               int64 // 0 seeds from the clock
}

// DefaultConfig returns the defaults relative to now: 100000 profiles starting at 1,
// 1000 of 82000 segments each, expiring between 179 days ago and 28 days ahead.
func DefaultConfig(now time.Time) Config {
	return Config{
		Set:                "profiles",
		From:               1,
		To:                 1 + DefaultRange,
		SegmentsPerProfile: DefaultSegmentsPerProfile,
		Universe:           DefaultUniverse,
		LowHour:            HourOf(now.Add(-179 * 24 * time.Hour)),
		HighHour:           HourOf(now.Add(28 * 24 * time.Hour)),
	}
}

// Validate checks the configuration for empty ranges
func (c Config) Validate() error {
	switch {
	case c.To <= c.From:
		return fmt.Errorf("empty id range [%d, %d)", c.From, c.To)
	case c.SegmentsPerProfile <= 0:
		return fmt.Errorf("segments per profile must be positive, got %d", c.SegmentsPerProfile)
	case c.Universe <= 0:
		return fmt.Errorf("segment universe must be positive, got %d", c.Universe)
	case c.HighHour <= c.LowHour:
		return fmt.Errorf("empty hour window [%d, %d)", c.LowHour, c.HighHour)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("profiles %s/[%d, %d) with %d of %d segments, hours [%d, %d)",
		c.Set, c.From, c.To, c.SegmentsPerProfile, c.Universe, c.LowHour, c.HighHour)
}

// --------------------------------------------------------------------------
// Generator
// --------------------------------------------------------------------------

// Report summarizes a run. Latencies are write latencies.
type Report struct {
	Written  int64
	Failed   int64
	Duration time.Duration
	Mean     time.Duration
	P50      time.Duration
	P99      time.Duration
	Max      time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("written=%d failed=%d in %s (write latency mean=%s p50=%s p99=%s max=%s)",
		r.Written, r.Failed, r.Duration.Round(time.Millisecond), r.Mean, r.P50, r.P99, r.Max)
}

// Generator bulk-creates profiles with random segment maps.
// It is a best effort loader: a failed write is reported and counted, the run continues.
// A Generator is not safe for concurrent use.
type Generator struct {
	store store.IStore
	cfg   Config
	rng   *rand.Rand

	registry metrics.Registry
	latency  metrics.Timer
	written  metrics.Counter
	failed   metrics.Counter

	// OnError is called for every failed write (optional)
	OnError func(key db.Key, err error)
	// OnWritten is called after every successful write (optional)
	OnWritten func(key db.Key)
}

// NewGenerator creates a generator writing to s
func NewGenerator(s store.IStore, cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g := &Generator{
		store:    s,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		registry: metrics.NewRegistry(),
		latency:  metrics.NewTimer(),
		written:  metrics.NewCounter(),
		failed:   metrics.NewCounter(),
	}
	_ = g.registry.Register("populate.write.latency", g.latency)
	_ = g.registry.Register("populate.write.ok", g.written)
	_ = g.registry.Register("populate.write.failed", g.failed)
	return g, nil
}

// Registry exposes the generator's metrics
func (g *Generator) Registry() metrics.Registry {
	return g.registry
}

// Profile draws one random segment map.
// The segment ids are distinct; if the universe is smaller than the requested
// number of segments, every id of the universe is used once.
func (g *Generator) Profile() map[int64]cdt.Entry {
	ids := g.sample()
	items := make(map[int64]cdt.Entry, len(ids))
	for _, id := range ids {
		items[id] = cdt.NewEntry(g.cfg.LowHour + g.rng.Int63n(g.cfg.HighHour-g.cfg.LowHour))
	}
	return items
}

// sample draws min(k, universe) distinct ids from [0, universe) (Floyd's algorithm)
func (g *Generator) sample() []int64 {
	n := g.cfg.Universe
	k := int64(g.cfg.SegmentsPerProfile)
	if k > n {
		k = n
	}

	chosen := make(map[int64]struct{}, k)
	ids := make([]int64, 0, k)
	for j := n - k; j < n; j++ {
		t := g.rng.Int63n(j + 1)
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
		ids = append(ids, t)
	}
	return ids
}

// Run writes one profile per id of the configured range.
// It stops early only if ctx is cancelled; the report covers the ids processed so far.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	log.Infof("populating %s", g.cfg)

	var err error
	for id := g.cfg.From; id < g.cfg.To; id++ {
		if err = ctx.Err(); err != nil {
			break
		}

		key := db.NewKey(g.cfg.Set, UserKey(id))
		bins := map[string]*cdt.Map{Bin: cdt.NewMapFrom(g.Profile())}

		writeStart := time.Now()
		if werr := g.store.Put(key, bins); werr != nil {
			g.failed.Inc(1)
			log.Debugf("writing %s failed: %v", key, werr)
			if g.OnError != nil {
				g.OnError(key, werr)
			}
			continue
		}
		g.latency.UpdateSince(writeStart)
		g.written.Inc(1)
		if g.OnWritten != nil {
			g.OnWritten(key)
		}
	}

	report := Report{
		Written:  g.written.Count(),
		Failed:   g.failed.Count(),
		Duration: time.Since(start),
		Mean:     time.Duration(g.latency.Mean()),
		P50:      time.Duration(g.latency.Percentile(0.5)),
		P99:      time.Duration(g.latency.Percentile(0.99)),
		Max:      time.Duration(g.latency.Max()),
	}
	log.Infof("populate finished: %s", report)
	return report, err
}
