package seg

import (
	"context"

	"github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/lib/batch"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/profile"
	"github.com/ValentinKolb/dSeg/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client

	// SegmentCommands represents the segment map command group
	SegmentCommands = &cobra.Command{
		Use:                "seg",
		Short:              "Perform operations on the segment map of a single profile",
		PersistentPreRunE:  setupSegClient,
		PersistentPostRunE: closeSegClient,
	}
)

func init() {
	// Add common RPC flags to the segment commands
	util.SetupRPCClientFlags(SegmentCommands)

	SegmentCommands.PersistentFlags().String("bin", profile.Bin, util.WrapString("Bin holding the segment map"))

	// Add subcommands
	SegmentCommands.AddCommand(getCmd)
	SegmentCommands.AddCommand(putCmd)
	SegmentCommands.AddCommand(sizeCmd)
	SegmentCommands.AddCommand(rangeCmd)
	SegmentCommands.AddCommand(removeCmd)
	SegmentCommands.AddCommand(incrCmd)
}

// setupSegClient connects to the configured namespace
func setupSegClient(_ *cobra.Command, _ []string) (err error) {
	rpcClient, err = util.Connect()
	return err
}

func closeSegClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}

// newBatch creates a batch on the profile with the given user key
func newBatch(cmd *cobra.Command, userKey string) *batch.Batch {
	bin, _ := cmd.Flags().GetString("bin")
	return batch.New(rpcClient.Store, db.NewKey(util.GetSet(), userKey), bin)
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
