// Package dependency lets a task wait for a combination of events before it
// acts. An EventDependency completes with the first event on its
// subscription that matches a predicate; And and Or combine dependencies
// into trees. A Task runs a handler once its dependency tree completed.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/onflow/hotshot/consensus/hotshot/events"
)

// ErrCancelled is returned by dependencies whose wait was cancelled or whose
// event stream ended before they completed.
var ErrCancelled = errors.New("dependency cancelled")

// Dependency is a condition over the event stream.
type Dependency interface {
	// Completed waits for the dependency and returns the events that
	// satisfied it. It may only be called once.
	//
	// Expected error returns during normal operations:
	//   - context.DeadlineExceeded (wrapped) if ctx's deadline passed first
	//   - ErrCancelled (wrapped) if ctx was cancelled or the event stream closed first
	Completed(ctx context.Context) ([]events.Event, error)
}

// EventDependency completes with the first event matching its predicate.
type EventDependency struct {
	name  string
	sub   *events.Subscription
	match func(events.Event) bool

	mu        sync.Mutex
	completed events.Event
}

var _ Dependency = (*EventDependency)(nil)

// NewEventDependency waits on sub for an event matching match. The
// dependency owns sub and closes it when done.
func NewEventDependency(sub *events.Subscription, name string, match func(events.Event) bool) *EventDependency {
	return &EventDependency{
		name:  name,
		sub:   sub,
		match: match,
	}
}

// MarkCompleted completes the dependency with an event the caller already
// received.
func (d *EventDependency) MarkCompleted(e events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = e
}

func (d *EventDependency) Name() string { return d.name }

func (d *EventDependency) Completed(ctx context.Context) ([]events.Event, error) {
	defer d.sub.Close()
	for {
		if e := d.preCompleted(); e != nil {
			return []events.Event{e}, nil
		}
		e, err := d.sub.Next(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s dependency timed out: %w", d.name, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s dependency: %v: %w", d.name, err, ErrCancelled)
		}
		if d.match(e) {
			return []events.Event{e}, nil
		}
	}
}

func (d *EventDependency) preCompleted() events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

type andDependency struct {
	deps []Dependency
}

// And completes once all deps completed, with their events in the order of
// deps. It fails as soon as one of them fails, cancelling the others.
func And(deps ...Dependency) Dependency {
	return &andDependency{deps: deps}
}

func (a *andDependency) Completed(ctx context.Context) ([]events.Event, error) {
	results := make([][]events.Event, len(a.deps))
	g, gctx := errgroup.WithContext(ctx)
	for i, dep := range a.deps {
		i, dep := i, dep
		g.Go(func() error {
			evs, err := dep.Completed(gctx)
			if err != nil {
				return err
			}
			results[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []events.Event
	for _, evs := range results {
		all = append(all, evs...)
	}
	return all, nil
}

type orDependency struct {
	deps []Dependency
}

// Or completes with the events of the first of deps to complete, cancelling
// the others. It fails once all of them failed.
func Or(deps ...Dependency) Dependency {
	return &orDependency{deps: deps}
}

type orResult struct {
	events []events.Event
	err    error
}

func (o *orDependency) Completed(ctx context.Context) ([]events.Event, error) {
	if len(o.deps) == 0 {
		return nil, fmt.Errorf("empty or dependency: %w", ErrCancelled)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan orResult, len(o.deps))
	var wg sync.WaitGroup
	for _, dep := range o.deps {
		dep := dep
		wg.Add(1)
		go func() {
			defer wg.Done()
			evs, err := dep.Completed(ctx)
			results <- orResult{events: evs, err: err}
		}()
	}

	var firstErr error
	for range o.deps {
		r := <-results
		if r.err == nil {
			cancel()
			wg.Wait()
			return r.events, nil
		}
		if firstErr == nil {
			firstErr = r.err
		}
	}
	return nil, firstErr
}
