package job

import (
	"fmt"

	"github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client

	// JobCommands represents the background job command group
	JobCommands = &cobra.Command{
		Use:                "job",
		Short:              "Inspect and cancel background jobs",
		PersistentPreRunE:  setupJobClient,
		PersistentPostRunE: closeJobClient,
	}

	statusCmd = &cobra.Command{
		Use:   "status [id]",
		Short: "Shows the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcClient.Jobs.JobStatus(jobs.JobID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cancelCmd = &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancels a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Jobs.CancelJob(jobs.JobID(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled successfully")
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the jobs of the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := rpcClient.Jobs.ListJobs()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
			}
			for _, info := range infos {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
			return nil
		},
	}
)

func init() {
	util.SetupRPCClientFlags(JobCommands)

	JobCommands.AddCommand(statusCmd)
	JobCommands.AddCommand(cancelCmd)
	JobCommands.AddCommand(listCmd)
}

// setupJobClient connects to the configured namespace
func setupJobClient(_ *cobra.Command, _ []string) (err error) {
	rpcClient, err = util.Connect()
	return err
}

func closeJobClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
