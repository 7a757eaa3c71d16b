// Package store provides the SQLite-backed Local Durable Store of the
// point-of-sale engine.
//
// The store holds:
//   - Collections: one table per entity kind, canonical JSON records keyed by id
//   - Pending operations: the outbound sync queue, ordered by id
//   - Dead letters: queue entries that exhausted their retries
//
// # Critical Patterns
//
// Atomic multi-record writes
//   - Store.WithTx runs a function against a *Tx inside one SQLite transaction
//   - Any error returned by the function rolls everything back
//   - Inside WithTx, use only the *Tx; calling the *Store would wait on the
//     single connection held by the transaction
//
// Deterministic query results
//   - Every compiled query ends in ORDER BY <field>, id
//   - Query results are lazy and fetched in batches, so no connection is
//     pinned between batches
//
// Absence is not an error
//   - Get returns ok=false for a missing id
//   - Delete of a missing id succeeds
//   - Update of a missing id is a NOT_FOUND domain error
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
