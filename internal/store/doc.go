// Package store provides SQLite-backed durable storage for traversal traces.
//
// The store is an append-only log of two tables:
//   - runs: one row per traversal (config, termination reason, digest)
//   - events: the ordered Crawl/Analyze events of each run
//
// # Ordering
//
// Runs are ordered by created_seq, a logical counter assigned by the store
// inside the insert transaction. Events are ordered by their trace seq.
// Every list query orders explicitly (ORDER BY created_seq ASC, id ASC or
// ORDER BY seq ASC) so reads are identical across processes and replays.
//
// # Idempotency
//
// WriteRun inserts a run and all of its events in one transaction. Writing
// a run ID that already exists is a no-op, so a retried write never
// duplicates events.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Trace digests are computed by internal/ir from RFC 8785 canonical JSON
// with SHA-256 domain separation.
package store
