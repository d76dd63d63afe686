package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ReservedMetricsPath is the http path of the metrics endpoint and can't be used as a namespace
const ReservedMetricsPath = "metrics"

type NamespaceType string

const (
	NamespaceTypeLocal NamespaceType = "lstore" // single node store
	NamespaceTypeRaft  NamespaceType = "dstore" // raft replicated store
)

// ServerNamespace is one store served by the RPC server
type ServerNamespace struct {
	// Name routes requests to the namespace
	Name string
	// ShardID is the raft shard of a replicated namespace
	ShardID uint64
	Type    NamespaceType
}

// ParseNamespaces parses namespace specs of the form name=type[:shardID].
// Without an explicit shard id the position in the list (starting at 1) is used,
// so all nodes of a cluster must be started with the same list.
func ParseNamespaces(specs []string) ([]ServerNamespace, error) {
	namespaces := make([]ServerNamespace, 0, len(specs))
	seen := make(map[string]bool)
	shardIDs := make(map[uint64]string)

	for i, spec := range specs {
		name, rest, ok := strings.Cut(strings.TrimSpace(spec), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid namespace %q, expected name=lstore|dstore[:shardID]", spec)
		}
		if name == ReservedMetricsPath {
			return nil, fmt.Errorf("namespace name %q is reserved", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("namespace %q is defined twice", name)
		}
		seen[name] = true

		typ, idStr, hasID := strings.Cut(rest, ":")
		ns := ServerNamespace{Name: name, ShardID: uint64(i + 1), Type: NamespaceType(typ)}
		if ns.Type != NamespaceTypeLocal && ns.Type != NamespaceTypeRaft {
			return nil, fmt.Errorf("invalid type %q for namespace %q, expected lstore or dstore", typ, name)
		}
		if hasID {
			id, err := strconv.ParseUint(idStr, 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("invalid shard id %q for namespace %q", idStr, name)
			}
			ns.ShardID = id
		}
		if other, dup := shardIDs[ns.ShardID]; dup && ns.Type == NamespaceTypeRaft {
			return nil, fmt.Errorf("namespaces %q and %q use the same shard id %d", other, name, ns.ShardID)
		}
		shardIDs[ns.ShardID] = name

		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

// ServerConfig holds all configuration parameters of a server node.
type ServerConfig struct {
	// namespaces served by this node
	Namespaces []ServerNamespace

	// Dragenboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// remote store parameters
	TimeoutSecond int64

	// HTTP api settings
	Endpoint string
	Username string
	Password string

	// local namespaces are restored from and saved to this directory (empty disables it)
	SnapshotDir string

	// finished background jobs kept per namespace
	MaxFinishedJobs int

	// Logging configuration
	LogLevel string
}

// HasRaftNamespace checks if the configuration contains any replicated namespace
func (c *ServerConfig) HasRaftNamespace() bool {
	for _, ns := range c.Namespaces {
		if ns.Type == NamespaceTypeRaft {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Authentication", fmt.Sprintf("%t", c.Username != ""))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Namespaces
	addSection("Namespaces")
	for _, ns := range c.Namespaces {
		if ns.Type == NamespaceTypeRaft {
			addField(ns.Name, fmt.Sprintf("%s (shard %d)", ns.Type, ns.ShardID))
		} else {
			addField(ns.Name, string(ns.Type))
		}
	}
	addField("Snapshot Directory", c.SnapshotDir)
	addField("Retained Jobs", strconv.Itoa(c.MaxFinishedJobs))

	if c.HasRaftNamespace() {
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
	Username      string
	Password      string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	sb.WriteString("\nCLIENT CONFIGURATION\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %d sec\n", "Timeout", c.TimeoutSecond))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Retry Count", c.RetryCount))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Username", c.Username))

	sb.WriteString("\nENDPOINTS\n")
	for i, endpoint := range c.Endpoints {
		sb.WriteString(fmt.Sprintf("  %-22d: %s\n", i, endpoint))
	}
	return sb.String()
}
