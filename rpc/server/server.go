package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/store/dstore"
	"github.com/ValentinKolb/dSeg/lib/store/lstore"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// shutdownTimeout bounds the time running requests get after a shutdown signal
const shutdownTimeout = 10 * time.Second

// serverNamespace is a namespace together with the resources the server has to release
type serverNamespace struct {
	Namespace
	db   db.RecordDB // database of local namespaces (nil for replicated ones)
	jobs *jobs.Manager
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewGOBSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:       config,
		transport:    transport,
		serializer:   serializer,
		namespaces:   xsync.NewMapOf[string, *serverNamespace](),
		storeAdapter: NewIStoreServerAdapter(),
		jobAdapter:   NewJobServerAdapter(),
	}
}

type RPCServer struct {
	config       common.ServerConfig
	transport    transport.IRPCServerTransport
	serializer   serializer.IRPCSerializer
	namespaces   *xsync.MapOf[string, *serverNamespace]
	storeAdapter IRPCServerAdapter
	jobAdapter   IRPCServerAdapter
	nodeHost     *dragonboat.NodeHost
}

// handle decodes a request, dispatches it to the adapter of its namespace and encodes the response
func (s *RPCServer) handle(namespace string, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else if msg.MsgType == common.MsgTVersion {
		// the handshake works for every namespace
		respMsg = common.NewVersionResponse()
	} else if ns, ok := s.namespaces.Load(namespace); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("namespace %q not found", namespace))
	} else if msg.MsgType.IsJobMessage() {
		respMsg = s.jobAdapter.Handle(&msg, &ns.Namespace)
	} else {
		respMsg = s.storeAdapter.Handle(&msg, &ns.Namespace)
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize %s response: %v", respMsg.MsgType, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// snapshotPath returns the snapshot file of a local namespace
func (s *RPCServer) snapshotPath(name string) string {
	return filepath.Join(s.config.SnapshotDir, name+".snap")
}

// openLocalDB creates the database of a local namespace, restored from its snapshot if there is one
func (s *RPCServer) openLocalDB(name string) (db.RecordDB, error) {
	database := maple.NewMapleDB(nil)
	if s.config.SnapshotDir == "" {
		return database, nil
	}

	f, err := os.Open(s.snapshotPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return database, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to open snapshot of namespace %s: %w", name, err)
	}
	defer f.Close()

	if err := database.Load(f); err != nil {
		return nil, fmt.Errorf("failed to load snapshot of namespace %s: %w", name, err)
	}
	Logger.Infof("restored namespace %s from %s (%d records)", name, f.Name(), database.GetInfo().RecordCount)
	return database, nil
}

// saveLocalDB writes the snapshot of a local namespace (via a temporary file)
func (s *RPCServer) saveLocalDB(name string, database db.RecordDB) error {
	if err := os.MkdirAll(s.config.SnapshotDir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.config.SnapshotDir, name+".snap.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := database.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.snapshotPath(name))
}

func (s *RPCServer) init() error {

	// Function to create a new database instance
	dbFactory := func() db.RecordDB { return maple.NewMapleDB(nil) }

	// Create the Dragonboat NodeHost
	if s.config.HasRaftNamespace() {
		// Only create the NodeHost if we have replicated namespaces
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Configure the timeout for the distributed store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE NAMESPACES

	/*
		Note: A single RPC Server can serve any number of local and replicated
		namespaces. Every namespace gets its own job manager, so background jobs
		only ever touch the store they were submitted to.
	*/

	for _, nsConfig := range s.config.Namespaces {
		ns := &serverNamespace{Namespace: Namespace{Name: nsConfig.Name}}

		switch nsConfig.Type {
		case common.NamespaceTypeLocal:
			database, err := s.openLocalDB(nsConfig.Name)
			if err != nil {
				return err
			}
			ns.db = database
			ns.Store = lstore.NewLocalStoreFromDB(database)
			Logger.Infof("created local store for namespace %s", nsConfig.Name)

		case common.NamespaceTypeRaft:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create replicated store")
			}

			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, dstore.CreateStateMaschineFactory(dbFactory), s.config.ToDragonboatConfig(nsConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d of namespace %s: %w", nsConfig.ShardID, nsConfig.Name, err)
			}
			ns.Store = dstore.NewDistributedStore(s.nodeHost, nsConfig.ShardID, timeout)
			Logger.Infof("created replicated store for namespace %s (shard %d)", nsConfig.Name, nsConfig.ShardID)

		default:
			return fmt.Errorf("invalid namespace type: %s", nsConfig.Type)
		}

		ns.jobs = jobs.NewManager(ns.Store, jobs.Options{
			Namespace:   nsConfig.Name,
			MaxFinished: s.config.MaxFinishedJobs,
		})
		ns.Jobs = ns.jobs
		s.namespaces.Store(nsConfig.Name, ns)
	}

	Logger.Infof("dSeg setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the namespaces and start the transport layer.
// It blocks until the transport fails or the process receives SIGINT or SIGTERM.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.transport.Listen(s.config) }()

	select {
	case err := <-errCh:
		return errors.Join(err, s.close())
	case <-ctx.Done():
		Logger.Infof("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the transport and releases all namespaces
func (s *RPCServer) Shutdown(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)
	return errors.Join(err, s.close())
}

// close stops the job managers, saves the snapshots of local namespaces and stops raft
func (s *RPCServer) close() error {
	var errs []error

	s.namespaces.Range(func(name string, ns *serverNamespace) bool {
		ns.jobs.Close()

		if ns.db != nil && s.config.SnapshotDir != "" {
			if err := s.saveLocalDB(name, ns.db); err != nil {
				errs = append(errs, fmt.Errorf("failed to save snapshot of namespace %s: %w", name, err))
			} else {
				Logger.Infof("saved namespace %s to %s", name, s.snapshotPath(name))
			}
		}
		s.namespaces.Delete(name)
		return true
	})

	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	return errors.Join(errs...)
}
