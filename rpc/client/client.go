package client

import (
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/transport"
)

// Client bundles the store and the job service of one namespace on one connection
type Client struct {
	Store store.IStore
	Jobs  jobs.IJobService

	// ServerVersion is the protocol version reported by the server in the handshake
	ServerVersion string

	transport transport.IRPCClientTransport
}

// NewRPCClient connects to a namespace and checks the protocol version of the server.
// Errors of the handshake wrap transport.ErrUnauthorized or ErrIncompatibleVersion
// where applicable.
func NewRPCClient(
	namespace string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*Client, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	adapter := rpcClientAdapter{
		namespace:  namespace,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}

	version, err := adapter.handshake()
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	return &Client{
		Store:         &rpcStore{adapter},
		Jobs:          &rpcJobService{adapter},
		ServerVersion: version,
		transport:     transport,
	}, nil
}

// Close closes the underlying transport
func (c *Client) Close() error {
	return c.transport.Close()
}
