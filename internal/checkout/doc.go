// Package checkout turns a finished cart into a committed sale.
//
// A commit is one SQLite transaction. The transaction row, its items, the
// stock decrements, the shift and customer totals, the discount usage
// counter and every sync queue entry are written together or not at all.
// A failed commit leaves the store and the caller's cart exactly as they
// were, so the sale can be retried.
//
// Once a sale commits, the committer nudges the sync processor through
// Notifier. Delivery is never awaited and sync failures never reach the
// caller.
//
// Held carts are parked sales kept on the device. They are not synced.
package checkout
