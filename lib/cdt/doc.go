// Package cdt implements the segment map that is stored in every profile record and
// the operation engine that reads and mutates it.
//
// Key Components:
//
//   - Map: An ordered mapping from segment id (int64) to Entry. Pairs are kept sorted by
//     id, which makes key ranges and ordered iteration cheap.
//
//   - Entry: The value of one segment. Hour is the expiration marker in hours since
//     the epoch, Meta is opaque metadata that is only carried along. For path addressing
//     an entry behaves like the list [hour, meta].
//
//   - Operation: A single call against one bin of a record (GetByKey, GetByValue,
//     GetByValueRange, GetByKeyRange, Put, PutItems, RemoveByKey, RemoveByValueRange,
//     RemoveByKeyRange, Size, Increment, Clear). The ReturnKind selects which view of
//     the selected entries is returned.
//
//   - Apply: Runs a sequence of operations against the bins of one record. Bins are
//     cloned before the first write so the sequence is all-or-nothing.
//
// Value ranges compare the hour only. Metadata acts as a wildcard, so the range
// [low, high) selects every entry with low <= hour < high regardless of its metadata.
// All selections (get and remove, by key or by value) share one selection primitive.
package cdt
