// Package common provides the data structures shared by the RPC client and server:
// the Message protocol, configuration structures and the logger setup.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. One struct is used for
//     requests and responses of every operation; which fields are set depends on the
//     MessageType. Errors travel as text plus a kind, so that store errors and the
//     job service's sentinel errors keep their identity on the client (see
//     Message.ResponseError).
//
//   - ServerConfig: Configuration of a server node: namespaces, RAFT parameters,
//     endpoint and credentials. Provides the conversion to Dragonboat configurations.
//
//   - ClientConfig: Configuration for clients, controlling endpoints, credentials,
//     timeouts and retries.
//
//   - Logger: Logging implementation installed as Dragonboat's logger factory, so all
//     components log in the same format.
package common
