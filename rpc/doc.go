// Package rpc provides the remote procedure call layer of the segment store. It
// connects the cli and other clients with the namespaces served by a server node.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions and the HTTP implementation.
//
//   - serializer: Message serialization (GOB, JSON) for converting between Message
//     objects and byte arrays.
//
//   - client: RPC client implementations for the store and job service interfaces,
//     allowing applications to interact with remote namespaces transparently.
//
//   - server: RPC server components that handle incoming requests, including
//     adapters for record and job operations.
package rpc
