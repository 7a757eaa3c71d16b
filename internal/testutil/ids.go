package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns ids of the form "{prefix}-{n}" with n counting
// from 1. Implements ident.IDGenerator.
//
// Thread-safety: SequenceGenerator is safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "id".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceGenerator{prefix: prefix}
}

// NewID returns the next id in sequence.
func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedGenerator returns predetermined ids in order.
//
// Panics when all ids have been consumed, which catches tests that create
// more records than they declared.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// NewID returns the next predetermined id.
func (g *FixedGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// ZeroReader is an io.Reader of zero bytes. Codes{Rand: ZeroReader{}}
// yields "0000" transaction suffixes and "AAAAAAAA" discount codes.
type ZeroReader struct{}

// Read fills p with zeros.
func (ZeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
