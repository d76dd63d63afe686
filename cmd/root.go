package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ValentinKolb/dSeg/cmd/job"
	"github.com/ValentinKolb/dSeg/cmd/populate"
	"github.com/ValentinKolb/dSeg/cmd/seg"
	"github.com/ValentinKolb/dSeg/cmd/serve"
	"github.com/ValentinKolb/dSeg/cmd/trim"
	"github.com/ValentinKolb/dSeg/cmd/update"
	"github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "1.3.0"
)

var (
	// helpShown is set whenever a help text was printed, the process then exits with util.ExitHelp
	helpShown bool

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dseg",
		Short: "segment store for user profiles",
		Long: fmt.Sprintf(`dSeg (v%s)

A store for per-user segment maps with hour based expiration,
served locally or replicated with RAFT, plus the tools to
populate, query and trim the profiles.`, Version),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initRoot,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dSeg",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dSeg v%s (protocol %s)\n", Version, common.Version)
		},
	}
)

func init() {
	// run the pre-run hooks of all parents, not only the closest one
	cobra.EnableTraverseRunHooks = true

	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(populate.PopulateCmd)
	RootCmd.AddCommand(update.UpdateCmd)
	RootCmd.AddCommand(trim.TrimCmd)
	RootCmd.AddCommand(seg.SegmentCommands)
	RootCmd.AddCommand(job.JobCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "gob", util.WrapString("serializer to use (gob, json), must match the server"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	// remember that help was displayed
	defaultHelp := RootCmd.HelpFunc()
	RootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpShown = true
		defaultHelp(cmd, args)
	})
}

// initRoot binds the flags of the executed command and sets up the loggers
func initRoot(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var exitErr *util.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(util.ExitHelp)
	}

	if helpShown {
		os.Exit(util.ExitHelp)
	}
}
