package trim

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// UserKey is the profile used to show the effect of the sweep
const UserKey = "u3"

var TrimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Remove stale segments from every profile of a set",
	Long: `Shows the stale segments of the profile u3, removes all segments with a
segment TTL before the current hour from every profile of the set with a
background job and shows the profile again.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	util.SetupRPCClientFlags(TrimCmd)

	key := "interactive"
	TrimCmd.Flags().BoolP(key, "i", false, util.WrapString("Interactive Mode (pause before each step)"))
}

func run(cmd *cobra.Command, _ []string) error {
	c, err := util.Connect()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	pause := func() {}
	if viper.GetBool("interactive") {
		pause = func() { util.Pause(cmd.InOrStdin(), out) }
	}

	return trim(ctx, out, pause,
		jobs.NewSweeper(c.Store, c.Jobs, util.GetSet(), profile.Bin),
		db.NewKey(util.GetSet(), UserKey),
		profile.HourOf(time.Now()))
}

// trim removes every segment with a TTL before currentHour from the set of key
// and prints the stale segments of key before and after
func trim(ctx context.Context, out io.Writer, pause func(), sweeper *jobs.Sweeper, key db.Key, currentHour int64) error {
	spacer := strings.Repeat("=", 30)
	cutoff := currentHour

	fmt.Fprintf(out, "\nCurrent hour is %d hours since epoch\n", currentHour)
	pause()

	if err := show(ctx, out, sweeper, key, cutoff, "has"); err != nil {
		return err
	}
	fmt.Fprintln(out, spacer)

	fmt.Fprintln(out, "Clean the stale segments from the entire namespace")
	pause()
	info, err := sweeper.Sweep(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, info)

	if err := show(ctx, out, sweeper, key, cutoff, "now has"); err != nil {
		return err
	}
	fmt.Fprintln(out, spacer)
	return nil
}

// show prints the size and the stale segments of one profile
func show(ctx context.Context, out io.Writer, s *jobs.Sweeper, key db.Key, cutoff int64, verb string) error {
	stale, err := s.StaleSegments(ctx, key, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "This user %s a total of %d segments\n", verb, stale.Size)
	fmt.Fprintf(out, "Of those, a total of %d segments should be cleaned\n", len(stale.Keys))
	fmt.Fprintln(out, "Show all segments with a segment TTL before the current hour:")
	fmt.Fprintln(out, stale.Keys)
	return nil
}
