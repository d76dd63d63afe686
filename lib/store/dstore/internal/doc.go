// Package internal provides the communication protocol structures and serialization
// logic for the dstore package.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
//   - Command System: Write operations (Put, Delete, Operate) that modify the state of
//     the database. Commands are serialized and proposed to the RAFT cluster, executed
//     on every replica's state machine, and produce results that are returned to the
//     proposer.
//
//   - Query System: Read operations (Get, Has, read-only Operate, Scan, GetDBInfo).
//     Queries are executed locally on the state machine and therefore do not require
//     serialization.
//
// Command Format:
//
//	+------+---------+---------+-----+----------+---------+
//	| Type | Set Len | Key Len | Set | User Key | Payload |
//	| 1 B  | 4 B BE  | 4 B BE  | N B | N B      | rest    |
//	+------+---------+---------+-----+----------+---------+
//
// The payload is the JSON encoding of the bins (Put) or of the operation list
// (Operate). JSON keeps the open metadata trees of entries intact.
package internal
