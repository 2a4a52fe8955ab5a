// Package store provides the SQLite-backed invocation journal.
//
// Every dispatched action is appended as one row: which plugin action ran,
// with which validated parameters, where its outputs went and how it
// exited. The journal backs "pluma dev history".
//
// # Identity
//
// Rows carry two identifiers:
//   - id: a UUIDv7, unique per run and sortable by creation time
//   - content_id: the domain-separated hash of plugin, action, parameters
//     and outputs, equal across runs of the same command
//
// Parameters and outputs are stored as RFC 8785 canonical JSON.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks held by other pluma processes
//   - foreign_keys=ON
package store
