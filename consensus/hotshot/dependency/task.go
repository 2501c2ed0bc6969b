package dependency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// ErrTaskExists is returned when a second task is registered for a view.
var ErrTaskExists = errors.New("task already exists")

// Handler acts on the events that completed a task's dependency.
type Handler func(ctx context.Context, evs []events.Event)

// Task waits for its dependency and then runs its handler. Cancelling a
// task aborts the wait; a handler that already started runs to completion
// with a cancelled context.
type Task struct {
	dep    Dependency
	handle Handler

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewTask(dep Dependency, handle Handler) *Task {
	return &Task{
		dep:    dep,
		handle: handle,
		cancel: func() {},
		done:   make(chan struct{}),
	}
}

// Start runs the task in its own goroutine. Subsequent calls are no-ops.
func (t *Task) Start(ctx context.Context) {
	t.once.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		t.cancel = cancel
		go t.run(ctx)
	})
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()
	evs, err := t.dep.Completed(ctx)
	if err != nil {
		t.err = err
		return
	}
	t.handle(ctx, evs)
}

// Cancel aborts the task. It is safe to call at any time and repeatedly.
func (t *Task) Cancel() {
	t.once.Do(func() {
		t.err = fmt.Errorf("task cancelled before start: %w", ErrCancelled)
		close(t.done)
		// releases the subscriptions of the dependency
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		go func() { _, _ = t.dep.Completed(ctx) }()
	})
	t.cancel()
}

// Done is closed once the task finished, whether it ran its handler or not.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns why the handler didn't run. Only meaningful after Done.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Tasks holds at most one task per view. Safe for concurrent use.
type Tasks struct {
	mu    sync.Mutex
	tasks map[model.View]*Task
}

func NewTasks() *Tasks {
	return &Tasks{tasks: make(map[model.View]*Task)}
}

// Add registers the task for the view.
//
// Expected error returns during normal operations:
//   - ErrTaskExists if the view already has a task
func (ts *Tasks) Add(view model.View, t *Task) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.tasks[view]; ok {
		return fmt.Errorf("view %d: %w", view, ErrTaskExists)
	}
	ts.tasks[view] = t
	return nil
}

// Remove forgets the task of the view without cancelling it.
func (ts *Tasks) Remove(view model.View) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tasks, view)
}

func (ts *Tasks) Contains(view model.View) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.tasks[view]
	return ok
}

func (ts *Tasks) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tasks)
}

// Views returns the views with a task, ascending.
func (ts *Tasks) Views() []model.View {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	views := maps.Keys(ts.tasks)
	slices.Sort(views)
	return views
}

// CancelRange cancels and removes the tasks of views in (from, to]. It
// returns the number of tasks that were still waiting.
func (ts *Tasks) CancelRange(from, to model.View) int {
	return ts.cancelWhere(func(v model.View) bool { return v > from && v <= to })
}

// CancelBelow cancels and removes the tasks of views below view. It returns
// the number of tasks that were still waiting.
func (ts *Tasks) CancelBelow(view model.View) int {
	return ts.cancelWhere(func(v model.View) bool { return v < view })
}

// CancelAll cancels and removes every task.
func (ts *Tasks) CancelAll() int {
	return ts.cancelWhere(func(model.View) bool { return true })
}

func (ts *Tasks) cancelWhere(pred func(model.View) bool) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	cancelled := 0
	for view, t := range ts.tasks {
		if !pred(view) {
			continue
		}
		if !t.finished() {
			cancelled++
		}
		t.Cancel()
		delete(ts.tasks, view)
	}
	return cancelled
}
