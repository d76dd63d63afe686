// Package transport defines the interfaces for RPC communication between the cli and
// the server. Transports move opaque byte payloads; serialization is done by the
// serializer package and the meaning of a payload by the server adapters.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them by namespace to a handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// The only implementation is HTTP (see package http).
package transport
