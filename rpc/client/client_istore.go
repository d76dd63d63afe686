package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a namespace, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	namespace string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			namespace:  namespace,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Put(key db.Key, bins map[string]*cdt.Map) error {
	// gob can't encode nil maps, a nil bin is written as an empty map
	sent := make(map[string]*cdt.Map, len(bins))
	for bin, m := range bins {
		if m == nil {
			m = cdt.NewMap()
		}
		sent[bin] = m
	}

	_, err := i.invoke(common.NewPutRequest(key, sent))
	return err
}

func (i *rpcStore) Delete(key db.Key) error {
	_, err := i.invoke(common.NewDeleteRequest(key))
	return err
}

func (i *rpcStore) Get(key db.Key) (db.Record, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil || !resp.Ok {
		return db.Record{}, false, err
	}
	return db.Record{Key: resp.Key, Bins: resp.Bins, Generation: resp.Generation}, true, nil
}

func (i *rpcStore) Has(key db.Key) (bool, error) {
	resp, err := i.invoke(common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) OperateOrdered(key db.Key, ops []cdt.Operation) ([]cdt.Result, error) {
	resp, err := i.invoke(common.NewOperateRequest(key, ops))
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(ops) {
		return nil, fmt.Errorf("RPC client - expected %d results, got %d", len(ops), len(resp.Results))
	}
	return resp.Results, nil
}

func (i *rpcStore) OperateExisting(key db.Key, ops []cdt.Operation) ([]cdt.Result, bool, error) {
	resp, err := i.invoke(common.NewOperateExistingRequest(key, ops))
	if err != nil {
		return nil, false, err
	}
	if resp.Ok && len(resp.Results) != len(ops) {
		return nil, false, fmt.Errorf("RPC client - expected %d results, got %d", len(ops), len(resp.Results))
	}
	return resp.Results, resp.Ok, nil
}

func (i *rpcStore) Operate(key db.Key, ops []cdt.Operation) (map[string]cdt.Result, error) {
	resp, err := i.invoke(common.NewOperateUnorderedRequest(key, ops))
	if err != nil {
		return nil, err
	}
	if resp.BinResults == nil {
		resp.BinResults = map[string]cdt.Result{}
	}
	return resp.BinResults, nil
}

func (i *rpcStore) ScanKeys(set string) ([]db.Key, error) {
	resp, err := i.invoke(common.NewScanRequest(set))
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (i *rpcStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	resp, err := i.invoke(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	if err := json.Unmarshal(resp.Info, &info); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("RPC client - invalid database info: %w", err)
	}
	return info, nil
}
