package server

import (
	"fmt"

	"github.com/ValentinKolb/dSeg/rpc/common"
)

func NewJobServerAdapter() IRPCServerAdapter {
	return &jobServerAdapterImpl{}
}

type jobServerAdapterImpl struct{}

func (adapter *jobServerAdapterImpl) Handle(req *common.Message, ns *Namespace) (resp *common.Message) {
	// Check for nil job service
	if ns == nil || ns.Jobs == nil {
		return common.NewErrorResponse("handler: job service is nil")
	}
	jobs := ns.Jobs

	// Handle different message types
	switch req.MsgType {
	case common.MsgTJobSubmit:
		id, err := jobs.SubmitBackgroundJob(req.Set, req.Ops)
		return common.NewJobSubmitResponse(id, err)
	case common.MsgTJobStatus:
		info, err := jobs.JobStatus(req.JobID)
		return common.NewJobStatusResponse(info, err)
	case common.MsgTJobCancel:
		return common.NewResponse(common.MsgTJobCancel, jobs.CancelJob(req.JobID))
	case common.MsgTJobList:
		infos, err := jobs.ListJobs()
		return common.NewJobListResponse(infos, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC JobAdapter - Unsuported message type: %s", req.MsgType))
	}
}
