// Package barrier implements a reusable (cyclic) rendezvous point for a
// fixed number of parties, the Go equivalent of the std::barrier used by
// original_source/wavesolve_thread.cpp's worker pool. Go has no barrier
// primitive in the standard library or in the teacher's own dependency
// set, so this is built directly on sync.Cond, which is the idiomatic Go
// building block for "wait until everyone arrives".
package barrier

import "sync"

// Barrier blocks n goroutines ("parties") at Wait until all n have called
// it, then releases them all and resets for the next round.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
}

// New creates a Barrier for the given number of parties. parties must be
// >= 1.
func New(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until `parties` calls to Wait have been made on this
// Barrier (across all goroutines using it), then all callers return
// together.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}
