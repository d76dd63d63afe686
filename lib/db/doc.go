// Package db provides the interface for record database implementations.
//
// A record is addressed by a Key (set and user key) and holds named map bins
// (cdt.Map). All modifications of map bins go through Operate, which applies a
// sequence of cdt operations atomically.
//
// Key Components:
//
//   - RecordDB Interface: The interface all database implementations must satisfy.
//     It provides methods for record operations (Put, Get, Has, Delete), atomic map
//     operations (Operate), key scans per set (Scan), metadata retrieval (GetInfo),
//     and persistence operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports size estimates, record
//     count, implementation type and implementation-specific metadata.
//
// Note on Write Indices:
//   - All write operations require a write-index parameter that serves as a logical
//     timestamp. It is stored as the LastUpdate of the record and advances the
//     database's global logical clock.
//   - The write index only increases. SetWriteIdx ignores smaller values.
//   - Read operations don't take an index, they always see the latest state.
//
// Note on Atomicity:
//   - Operate must either apply all operations or none. A failing operation voids the
//     whole sequence and leaves the record unchanged.
//   - Operations that only read never create a record.
package db
