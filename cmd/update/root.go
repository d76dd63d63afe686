package update

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/lib/batch"
	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// UserKey is the profile the walkthrough works on
const UserKey = "u1"

var spacer = strings.Repeat("=", 30)

var UpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Walk through updates and queries on a single user profile",
	Long: `Runs a sequence of batches against the profile u1: upsert a single segment, put
multiple segments, extend the expiration of a segment, query segments by expiration
and id ranges and finally trim the segments expiring before today.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	util.SetupRPCClientFlags(UpdateCmd)

	key := "interactive"
	UpdateCmd.Flags().BoolP(key, "i", false, util.WrapString("Interactive Mode (pause before each step)"))
}

// walkthrough holds the state shared by the steps
type walkthrough struct {
	ctx         context.Context
	s           *batch.Batch
	out         io.Writer
	pause       func()
	rng         *rand.Rand
	now         time.Time
	segmentID   int64
	segmentHour int64
}

func run(cmd *cobra.Command, _ []string) error {
	c, err := util.Connect()
	if err != nil {
		return err
	}
	defer c.Close()

	w := &walkthrough{
		ctx:   cmd.Context(),
		s:     batch.New(c.Store, db.NewKey(util.GetSet(), UserKey), profile.Bin),
		out:   cmd.OutOrStdout(),
		pause: func() {},
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now(),
	}
	if w.ctx == nil {
		w.ctx = context.Background()
	}
	if viper.GetBool("interactive") {
		w.pause = func() { util.Pause(cmd.InOrStdin(), w.out) }
	}

	for _, step := range []func() error{
		w.upsertSegment,
		w.putSegments,
		w.extendSegment,
		w.notExpiringToday,
		w.countRange,
		w.trimStale,
	} {
		if err := step(); err != nil {
			return err
		}
		fmt.Fprintln(w.out, spacer)
	}
	return nil
}

func (w *walkthrough) randomSegment() int64 {
	return w.rng.Int63n(profile.DefaultUniverse)
}

// upsertSegment puts a single segment expiring in 30 days and reads it before and after
func (w *walkthrough) upsertSegment() error {
	w.segmentID = w.randomSegment()
	w.segmentHour = profile.HourOf(w.now.Add(30 * 24 * time.Hour))
	fmt.Fprintf(w.out, "\nUpsert segment %d => [%d] to user %s\n", w.segmentID, w.segmentHour, UserKey)
	w.pause()

	results, err := w.s.Reset().
		GetByKey(w.segmentID, cdt.ReturnKeyValue).
		Put(w.segmentID, cdt.NewEntry(w.segmentHour)).
		GetByKey(w.segmentID, cdt.ReturnKeyValue).
		ExecOrdered(w.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "Segment value before: %v\n", results[0].Pairs)
	fmt.Fprintf(w.out, "Number of segments after upsert: %d\n", results[1].Count)
	fmt.Fprintf(w.out, "Segment value after: %v\n", results[2].Pairs)
	return nil
}

// putSegments puts 8 random segments sharing one expiration hour and lists all
// segments with that hour
func (w *walkthrough) putSegments() error {
	items := make(map[int64]cdt.Entry, 8)
	for i := 0; i < 8; i++ {
		w.segmentID = w.randomSegment()
		items[w.segmentID] = cdt.NewEntry(w.segmentHour)
	}
	fmt.Fprintf(w.out, "\nUpdating multiple segments for user %s\n", UserKey)
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(w.out, "  %d: %s\n", id, items[id])
	}
	w.pause()

	results, err := w.s.Reset().
		PutItems(items).
		GetByValue(w.segmentHour, cdt.ReturnKeyValue).
		Exec(w.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "Show all segments with TTL %d:\n", w.segmentHour)
	fmt.Fprintln(w.out, results[profile.Bin].Pairs)
	return nil
}

// extendSegment adds 5 hours to the expiration of the last segment put
func (w *walkthrough) extendSegment() error {
	fmt.Fprintf(w.out, "\nAdd 5 hours to the TTL of user %s's segment %d\n", UserKey, w.segmentID)
	w.pause()

	results, err := w.s.Reset().
		IncrementTTL(w.segmentID, 5).
		GetByKey(w.segmentID, cdt.ReturnKeyValue).
		Exec(w.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, results[profile.Bin].Pairs)
	return nil
}

// endOfTTL is the first hour of today, entries below it expire before today ends
func (w *walkthrough) endOfTTL() int64 {
	return profile.HourOf(profile.StartOfDay(w.now))
}

// notExpiringToday lists the segments with an expiration hour of today or later
func (w *walkthrough) notExpiringToday() error {
	fmt.Fprintln(w.out, "\nGet only user segments that are not going to expire today")
	w.pause()

	results, err := w.s.Reset().
		GetByValueRange(0, w.endOfTTL(), cdt.ReturnKey, true).
		Exec(w.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, "Show all segments not expiring today:")
	fmt.Fprintln(w.out, results[profile.Bin].Keys)
	return nil
}

// countRange counts the segments with an id in [8000, 9000)
func (w *walkthrough) countRange() error {
	fmt.Fprintf(w.out, "\nCount how many segments %s has in the segment ID range 8000-9000\n", UserKey)
	w.pause()

	results, err := w.s.Reset().
		GetByKeyRange(8000, 9000, cdt.ReturnCount).
		Exec(w.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, results[profile.Bin].Count)
	return nil
}

// trimStale removes the segments expiring before today and reports the remaining size
func (w *walkthrough) trimStale() error {
	fmt.Fprintf(w.out, "Clean the stale segments for user %s\n", UserKey)
	w.pause()

	results, err := w.s.Reset().
		RemoveByValueRange(0, w.endOfTTL(), cdt.ReturnCount, false).
		Size().
		ExecOrdered(w.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "User %s had %d stale segments trimmed, with %d segments remaining\n",
		UserKey, results[0].Count, results[1].Count)
	return nil
}
