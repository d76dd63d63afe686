package server

import (
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/rpc/common"
)

// Namespace is one named store served by the RPC server together with its job service
type Namespace struct {
	Name  string
	Store store.IStore
	Jobs  jobs.IJobService
}

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the namespace the request was sent to as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, ns *Namespace) (resp *common.Message)
}
