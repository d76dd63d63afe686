package server

import (
	"fmt"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, ns *Namespace) *common.Message {
	// Check for nil store
	if ns == nil || ns.Store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}
	store := ns.Store

	// Handle different message types
	switch req.MsgType {
	case common.MsgTRecPut:
		bins := req.Bins
		if bins == nil {
			bins = map[string]*cdt.Map{}
		}
		return common.NewResponse(common.MsgTRecPut, store.Put(req.Key, bins))
	case common.MsgTRecDelete:
		return common.NewResponse(common.MsgTRecDelete, store.Delete(req.Key))
	case common.MsgTRecGet:
		rec, ok, err := store.Get(req.Key)
		return common.NewGetResponse(rec, ok, err)
	case common.MsgTRecHas:
		ok, err := store.Has(req.Key)
		return common.NewHasResponse(ok, err)
	case common.MsgTRecOperate:
		results, err := store.OperateOrdered(req.Key, req.Ops)
		return common.NewOperateResponse(results, err)
	case common.MsgTRecOperateExisting:
		results, found, err := store.OperateExisting(req.Key, req.Ops)
		return common.NewOperateExistingResponse(results, found, err)
	case common.MsgTRecOperateUnordered:
		results, err := store.Operate(req.Key, req.Ops)
		return common.NewOperateUnorderedResponse(results, err)
	case common.MsgTRecScan:
		keys, err := store.ScanKeys(req.Set)
		return common.NewScanResponse(keys, err)
	case common.MsgTRecInfo:
		info, err := store.GetDBInfo()
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}
