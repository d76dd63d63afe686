// Package server implements the RPC server. It routes requests by namespace to
// adapters for the record store and the background job service.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a Namespace.
//
//   - NewIStoreServerAdapter: Adapter translating record requests to store.IStore calls.
//
//   - NewJobServerAdapter: Adapter translating job requests to jobs.IJobService calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Every namespace is either local (lstore) or replicated with RAFT (dstore) and gets its
// own job manager. Local namespaces are restored from and saved to snapshot files in
// the snapshot directory, if one is configured. The version handshake is answered for
// any namespace so that clients can check compatibility before anything else.
//
// Usage Example:
//
//	namespaces, _ := common.ParseNamespaces([]string{"test=lstore", "prod=dstore"})
//	config := common.ServerConfig{
//	  Namespaces:    namespaces,
//	  Endpoint:      "0.0.0.0:3000",
//	  TimeoutSecond: 5,
//	  SnapshotDir:   "/var/lib/dseg/snapshots",
//	  // RAFT parameters, required for dstore namespaces
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewGOBSerializer(),
//	)
//
//	// Blocks until SIGINT or SIGTERM
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server is safe for concurrent requests. Each request is processed independently,
//	atomicity of operation sequences is provided by the stores.
package server
