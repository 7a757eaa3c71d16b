// Package syncer delivers the local sync queue to a remote and refreshes the
// cached catalog from it.
//
// Delivery goes through the pending-operations queue only. An entry is
// removed after the remote confirms it; a failed entry is retried with
// exponential backoff and moved to the dead letters after MaxRetries
// attempts. The remote must treat inserts and upserts as idempotent by id,
// since an entry whose acknowledgement was lost is delivered again.
//
// Connectivity is passed explicitly to every entry point. With no remote
// configured every pass is a no-op and the till runs offline-only.
//
// Passes are serialized: concurrent callers of the same pass share one
// in-flight execution, and different passes never overlap.
package syncer
