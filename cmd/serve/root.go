package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/dSeg/cmd/util"
	"github.com/ValentinKolb/dSeg/lib/db/util"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/server"
	"github.com/ValentinKolb/dSeg/rpc/transport"
	"github.com/ValentinKolb/dSeg/rpc/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dSeg server",
		Long:    `Start the dSeg server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSEG_<flag> (e.g. DSEG_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "namespaces"
	ServeCmd.Flags().String(key, "test=lstore", cmdUtil.WrapString("Comma-separated list of namespaces to serve. Format: NAME=TYPE[:SHARD] where TYPE is lstore (local) or dstore (replicated with RAFT). Without SHARD the position in the list is used as shard id"))

	key = "rtt-millisecond"
	ServeCmd.Flags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.Flags().Int(key, 10, cmdUtil.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.Flags().Int(key, 5, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.Flags().String(key, "data", cmdUtil.WrapString("(dstore) DataDir is the directory used for the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.Flags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.Flags().String(key, "", cmdUtil.WrapString("(dstore) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.Flags().Int64(key, 5, cmdUtil.WrapString("(dstore) Timeout in seconds of raft proposals and reads"))

	key = "snapshot-dir"
	ServeCmd.Flags().String(key, "", cmdUtil.WrapString("(lstore) Directory local namespaces are restored from at startup and saved to at shutdown. Empty disables persistence"))

	key = "max-finished-jobs"
	ServeCmd.Flags().Int(key, jobs.DefaultMaxFinished, cmdUtil.WrapString("Number of finished background jobs kept per namespace for status queries"))

	key = "endpoint"
	ServeCmd.Flags().String(key, "0.0.0.0:3000", cmdUtil.WrapString("The address on which the API will listen"))

	key = "username"
	ServeCmd.Flags().String(key, "", cmdUtil.WrapString("Username clients must authenticate with (basic auth). Empty disables authentication"))

	key = "password"
	ServeCmd.Flags().String(key, "", cmdUtil.WrapString("Password clients must authenticate with"))

	key = "log-level"
	ServeCmd.Flags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(_ *cobra.Command, _ []string) error {
	// parse namespaces
	namespaces, err := common.ParseNamespaces(strings.Split(viper.GetString("namespaces"), ","))
	if err != nil {
		return err
	}
	serveCmdConfig.Namespaces = namespaces

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.SnapshotDir = viper.GetString("snapshot-dir")
	serveCmdConfig.MaxFinishedJobs = viper.GetInt("max-finished-jobs")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Username = viper.GetString("username")
	serveCmdConfig.Password = viper.GetString("password")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Password != "" && serveCmdConfig.Username == "" {
		return fmt.Errorf("a password requires a username")
	}

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = uint64(util.HashString(id, 0))
	} else if serveCmdConfig.HasRaftNamespace() {
		// error only if cluster mode
		return fmt.Errorf("ReplicaId is required for dstore namespaces")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			idHash := util.HashString(parts[0], 0)
			serveCmdConfig.ClusterMembers[uint64(idHash)] = parts[1]
		}
	} else if serveCmdConfig.HasRaftNamespace() {
		// error only if cluster mode
		return fmt.Errorf("ClusterMembers is required for dstore namespaces")
	}

	// test if the replica id is in the cluster members (only for cluster mode)
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasRaftNamespace() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the dSeg server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := serializer.ByName(viper.GetString("serializer"))
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}
