package client

import (
	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/serializer"
	"github.com/ValentinKolb/dSeg/rpc/transport"
)

// NewRPCJobService creates a new RPC jobs.IJobService
// The function takes a namespace, a config, a transport and a serializer as parameters
// It returns a jobs.IJobService and an error
func NewRPCJobService(
	namespace string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (jobs.IJobService, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC job service
	j := rpcJobService{
		rpcClientAdapter{
			namespace:  namespace,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC job service
	return &j, nil
}

type rpcJobService struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the jobs package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcJobService) SubmitBackgroundJob(set string, ops []cdt.Operation) (jobs.JobID, error) {
	resp, err := i.invoke(common.NewJobSubmitRequest(set, ops))
	if err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (i *rpcJobService) JobStatus(id jobs.JobID) (jobs.JobInfo, error) {
	resp, err := i.invoke(common.NewJobStatusRequest(id))
	if err != nil {
		return jobs.JobInfo{}, err
	}
	if len(resp.Jobs) != 1 {
		return jobs.JobInfo{}, jobs.ErrJobNotFound
	}
	return resp.Jobs[0], nil
}

func (i *rpcJobService) CancelJob(id jobs.JobID) error {
	_, err := i.invoke(common.NewJobCancelRequest(id))
	return err
}

func (i *rpcJobService) ListJobs() ([]jobs.JobInfo, error) {
	resp, err := i.invoke(common.NewJobListRequest())
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}
