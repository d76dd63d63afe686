// Package client implements RPC clients for the segment store. It provides
// implementations of the store.IStore and jobs.IJobService interfaces that communicate
// with a namespace of a remote server.
//
// Key Components:
//
//   - NewRPCClient: Connects to a namespace, checks the protocol version of the server
//     and returns a Client with both the store and the job service. A different major
//     version fails with ErrIncompatibleVersion, rejected credentials with
//     transport.ErrUnauthorized.
//
//   - NewRPCStore and NewRPCJobService: Create a single client without the handshake.
//
// Errors returned by the server keep their identity: failed operation sequences are a
// *store.Error with code RetCOpFailed and job errors match the sentinel errors of the
// jobs package with errors.Is.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"127.0.0.1:3000"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	c, err := client.NewRPCClient("test", config, http.NewHttpClientTransport(), serializer.NewGOBSerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	b := batch.New(c.Store, db.NewKey("profiles", "u1"), profile.Bin)
//	results, err := b.GetByKey(8001, cdt.ReturnValue).Size().ExecOrdered(ctx)
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
