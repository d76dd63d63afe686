package populate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var PopulateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Bulk-create user profiles with random segment maps",
	Long: `Writes one profile record per user id of the range [from, to) to the configured set.
Each profile gets a map of distinct random segment ids with expiration hours between
179 days ago and 28 days ahead. Failed writes are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	util.SetupRPCClientFlags(PopulateCmd)

	key := "from"
	PopulateCmd.Flags().Int64P(key, "f", 1, util.WrapString("Start with a specific user ID"))

	key = "to"
	PopulateCmd.Flags().Int64P(key, "t", 0, util.WrapString("End with a specific user ID (exclusive, defaults to from + 100000)"))

	key = "segments"
	PopulateCmd.Flags().Int(key, profile.DefaultSegmentsPerProfile, util.WrapString("Number of distinct segments per profile"))

	key = "universe"
	PopulateCmd.Flags().Int64(key, profile.DefaultUniverse, util.WrapString("Segment ids are drawn from [0, universe)"))

	key = "seed"
	PopulateCmd.Flags().Int64(key, 0, util.WrapString("Seed of the random generator (0 seeds from the clock)"))

	key = "quiet"
	PopulateCmd.Flags().BoolP(key, "q", false, util.WrapString("Quiet Mode"))
}

func run(cmd *cobra.Command, _ []string) error {
	c, err := util.Connect()
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := profile.DefaultConfig(time.Now())
	cfg.Set = util.GetSet()
	cfg.From = viper.GetInt64("from")
	cfg.To = viper.GetInt64("to")
	if cfg.To == 0 {
		cfg.To = cfg.From + profile.DefaultRange
	}
	cfg.SegmentsPerProfile = viper.GetInt("segments")
	cfg.Universe = viper.GetInt64("universe")
	cfg.Seed = viper.GetInt64("seed")

	gen, err := profile.NewGenerator(c.Store, cfg)
	if err != nil {
		return err
	}

	quiet := viper.GetBool("quiet")
	out := cmd.OutOrStdout()
	if !quiet {
		gen.OnWritten = func(key db.Key) {
			fmt.Fprintln(out, key.UserKey)
		}
		gen.OnError = func(key db.Key, err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %v\n", key.UserKey, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := gen.Run(ctx)
	if !quiet {
		fmt.Fprintln(out, report)
	}
	return err
}
