// Package util provides utility components for database implementations that satisfy
// the db.RecordDB interface and for the background job machinery built on top of them.
//
// The package contains:
//   - statistics: Distribution statistics and a SizeHistogram for tracking record sizes
//   - functions: The record digest (xxhash) and seed generation
//   - mapheap: A generic min-heap that also supports key-based access
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue
package util
