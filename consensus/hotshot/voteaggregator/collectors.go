package voteaggregator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// ErrPrunedView is returned for votes of views that were already pruned.
var ErrPrunedView = errors.New("view is below the pruned view")

type collectorKey struct {
	view  model.View
	epoch model.Epoch
}

// collectors indexes the collectors of one vote kind by view and epoch, and
// prunes them by view. Safe for concurrent use.
type collectors[C any] struct {
	mu         sync.RWMutex
	byKey      map[collectorKey]C
	lowestView model.View
}

func newCollectors[C any]() *collectors[C] {
	return &collectors[C]{byKey: make(map[collectorKey]C)}
}

// get returns the collector of the key, if one exists.
//
// Expected error returns during normal operations:
//   - ErrPrunedView if the view is below the lowest retained view
func (cs *collectors[C]) get(key collectorKey) (C, bool, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	var zero C
	if key.view < cs.lowestView {
		return zero, false, fmt.Errorf("view %d below %d: %w", key.view, cs.lowestView, ErrPrunedView)
	}
	c, ok := cs.byKey[key]
	return c, ok, nil
}

// getOrCreate returns the collector of the key, creating it with create if
// none exists. create runs without holding the lock, so it may block; if two
// callers race, the collector stored first wins.
//
// Expected error returns during normal operations:
//   - ErrPrunedView if the view is below the lowest retained view
//   - any error of create
func (cs *collectors[C]) getOrCreate(key collectorKey, create func() (C, error)) (C, bool, error) {
	c, ok, err := cs.get(key)
	if err != nil || ok {
		return c, false, err
	}
	created, err := create()
	if err != nil {
		return c, false, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if key.view < cs.lowestView {
		return c, false, fmt.Errorf("view %d below %d: %w", key.view, cs.lowestView, ErrPrunedView)
	}
	if existing, ok := cs.byKey[key]; ok {
		return existing, false, nil
	}
	cs.byKey[key] = created
	return created, true, nil
}

// pruneUpToView drops the collectors of views below view. Pruning never
// moves backwards.
func (cs *collectors[C]) pruneUpToView(view model.View) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if view <= cs.lowestView {
		return
	}
	cs.lowestView = view
	for key := range cs.byKey {
		if key.view < view {
			delete(cs.byKey, key)
		}
	}
}

func (cs *collectors[C]) len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.byKey)
}
