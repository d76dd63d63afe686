package transport

import (
	"context"
	"errors"

	"github.com/ValentinKolb/dSeg/rpc/common"
)

// ErrUnauthorized is returned by client transports if the server rejected the credentials
var ErrUnauthorized = errors.New("unauthorized: invalid username or password")

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the namespace and a request as parameters and returns a response
type ServerHandleFunc func(namespace string, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for extracting the namespace of the request
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving requests.
	// It returns nil after Shutdown was called.
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting requests and waits for running requests until ctx is done
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for a namespace to the server and returns the response
	Send(namespace string, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
