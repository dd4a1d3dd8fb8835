// Package cache implements the tiered table cache backing the data API.
//
// The disk tier is the durable one: gob-encoded table blobs and JSON
// metadata blobs named by the SHA-256 of the file identifier, tracked by a
// single JSON index file. The memory tier is a small bounded map in front
// of it that evicts in insertion order.
//
// Entries expire purely by age. The cache never revalidates against the
// remote store; a stale-but-fresh entry is served as-is until the max age
// passes or the entry is explicitly removed.
package cache
