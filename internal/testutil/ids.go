package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns predetermined identifiers in order.
//
// It satisfies both uid.StemGenerator (NewStem) and the run id generator
// interface (Generate), so one type covers stems and run ids.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewSequenceGenerator("abcd1234efgh", "wxyz1234efgh")
//	gen.NewStem() // "abcd1234efgh", nil
//	gen.NewStem() // "wxyz1234efgh", nil
//	gen.NewStem() // "", error: exhausted
func NewSequenceGenerator(ids ...string) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

func (g *SequenceGenerator) next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		return "", fmt.Errorf("SequenceGenerator: all %d ids consumed", len(g.ids))
	}
	id := g.ids[g.idx]
	g.idx++
	return id, nil
}

// NewStem returns the next id as a stem.
func (g *SequenceGenerator) NewStem() (string, error) {
	return g.next()
}

// Generate returns the next id.
//
// Panics if all ids have been consumed, to catch test misconfiguration
// (the test created more runs than it declared).
func (g *SequenceGenerator) Generate() string {
	id, err := g.next()
	if err != nil {
		panic(err)
	}
	return id
}

// Remaining reports how many ids have not been handed out yet.
func (g *SequenceGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ids) - g.idx
}
