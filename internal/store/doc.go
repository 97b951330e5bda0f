// Package store provides the SQLite-backed record store.
//
// It persists:
//   - Records: transform versions and artifacts, with their content
//   - Runs: executions of a transform, linked to a report and an environment
//   - Features: name/value annotations on records
//
// # Uniqueness
//
// The store never locks across processes. Racing creators are separated by
// unique constraints on uid, on (registry, stem, version_label) and on
// revises. A violated constraint surfaces as ErrDuplicateIdentity, which
// callers answer by resolving again from scratch, never by retrying the
// same write.
//
// # Deterministic Query Results
//
// Every list query orders by created_at DESC, uid COLLATE BINARY ASC, so
// "newest first" is stable even when two rows share a timestamp.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
