package syncer

import "sync/atomic"

// Connectivity reports whether the remote is believed reachable.
type Connectivity interface {
	Online() bool
}

// Flag is a Connectivity toggled by network status events.
//
// Thread-safety: Flag is safe for concurrent use.
type Flag struct {
	online atomic.Bool
}

// NewFlag returns a Flag with the given initial state.
func NewFlag(online bool) *Flag {
	f := &Flag{}
	f.online.Store(online)
	return f
}

// Set updates the state and reports whether it changed.
func (f *Flag) Set(online bool) bool {
	return f.online.Swap(online) != online
}

// Online implements Connectivity.
func (f *Flag) Online() bool {
	return f.online.Load()
}

// Static is a fixed Connectivity.
type Static bool

// Online implements Connectivity.
func (s Static) Online() bool {
	return bool(s)
}
