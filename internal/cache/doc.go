// Package cache persists introspected plugin descriptors between runs.
//
// Introspecting every installed plugin is expensive, so the result is
// stored on disk keyed by a fingerprint of the installed set. The
// fingerprint is computed from cheap registry identities (name, version,
// content hash). If it matches the stored entry, the descriptors are
// loaded from the cache and the registry's full Load is never called.
//
// The cache file is a self-describing CBOR envelope:
//
//	{magic, format, tool, fingerprint, created_at, plugins}
//
// Any read, decode, magic or format failure is treated as a miss. A miss
// rebuilds from the registry and replaces the file atomically.
package cache
