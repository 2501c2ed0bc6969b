package state

import (
	"sync"
)

// OuterConsensus shares one Consensus between the tasks of a replica.
// Callers must invoke the release function exactly once and must not retain
// the *Consensus after releasing it.
type OuterConsensus struct {
	mu    sync.RWMutex
	inner *Consensus
}

func NewOuterConsensus(c *Consensus) *OuterConsensus {
	return &OuterConsensus{inner: c}
}

// Read locks the state for reading.
func (o *OuterConsensus) Read() (*Consensus, func()) {
	o.mu.RLock()
	return o.inner, o.mu.RUnlock
}

// Write locks the state exclusively.
func (o *OuterConsensus) Write() (*Consensus, func()) {
	o.mu.Lock()
	return o.inner, o.mu.Unlock
}

// TryRead is Read without waiting. It returns false if a writer holds the
// lock.
func (o *OuterConsensus) TryRead() (*Consensus, func(), bool) {
	if !o.mu.TryRLock() {
		return nil, nil, false
	}
	return o.inner, o.mu.RUnlock, true
}

// TryWrite is Write without waiting. It returns false if any reader or
// writer holds the lock.
func (o *OuterConsensus) TryWrite() (*Consensus, func(), bool) {
	if !o.mu.TryLock() {
		return nil, nil, false
	}
	return o.inner, o.mu.Unlock, true
}
