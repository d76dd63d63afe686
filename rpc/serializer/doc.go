// Package serializer provides message serialization for the RPC system. It defines a
// common interface and the implementations used between client and server.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - gobSerializerImpl: Implementation using Go's gob encoding. Compact for the
//     nested record and result structures and the default of the cli.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or for clients that are not written in Go.
//
// Segment maps and entries carry their own codecs (see package cdt), so both
// serializers transport the open metadata of entries without loss. Numbers in
// metadata are normalized to int64 or float64 on decoding.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewGOBSerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
