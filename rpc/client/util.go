package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// ErrIncompatibleVersion is returned if the server speaks another major protocol version
var ErrIncompatibleVersion = errors.New("incompatible server version")

// rpcClientAdapter is a struct that stores all data needed for an implementation if an RPC client
// Used by the RPC store and the RPC job service with composition pattern
type rpcClientAdapter struct {
	namespace  string
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends a request to the namespace of the adapter.
// It returns the response message, or the error carried by the response
// This method also checks if the type of the response is the expected type
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := a.transport.Send(a.namespace, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err = a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC client - invalid response: %w", err)
	}

	// Check if the response is an error response
	if err := resp.ResponseError(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - Unexpected message type: %s, exected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}

// handshake checks that the server speaks a compatible protocol version and returns it
func (a *rpcClientAdapter) handshake() (string, error) {
	resp, err := a.invoke(common.NewVersionRequest())
	if err != nil {
		return "", err
	}
	if !compatible(common.Version, resp.Version) {
		return resp.Version, fmt.Errorf("%w: client %s, server %s", ErrIncompatibleVersion, common.Version, resp.Version)
	}
	Logger.Debugf("connected to server version %s (namespace %s)", resp.Version, a.namespace)
	return resp.Version, nil
}

// compatible reports whether two versions have the same major version
func compatible(a, b string) bool {
	majorA, _, _ := strings.Cut(a, ".")
	majorB, _, _ := strings.Cut(b, ".")
	return majorA != "" && majorA == majorB
}
