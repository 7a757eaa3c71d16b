// Package record provides the opaque attribute map used by the local store
// and the sync queue, plus the canonical JSON encoding every stored or
// queued record goes through.
package record
