// Package http implements the HTTP transport layer for RPC communication. It provides
// implementations of the transport interfaces defined in the parent package.
//
// Routes of the server (gorilla/mux):
//
//	POST /{namespace}  rpc request for the store and job service of a namespace
//	GET  /metrics      metrics in the prometheus text format
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are sent to
//     the current endpoint until it fails; a failed request is retried on the next endpoint.
//     Rejected credentials are reported as transport.ErrUnauthorized and not retried.
//
//   - httpServerTransport: Implements IRPCServerTransport. It optionally checks basic
//     auth credentials, counts requests per namespace and status code and logs every
//     request on the debug level.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently after Connect.
//	It uses atomic operations for the index of the current endpoint.
package http
