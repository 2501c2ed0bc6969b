package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/onflow/hotshot/module"
	"github.com/onflow/hotshot/module/irrecoverable"
)

// Component is started once and stopped by cancelling the context it was
// started with. Done closes after shutdown or an irrecoverable error.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc marks the calling worker as ready.
type ReadyFunc func()

// ComponentWorker is one long running routine of a component, typically an
// event loop over a bus subscription. It returns when ctx is cancelled.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

type ComponentManagerBuilder interface {
	AddWorker(ComponentWorker) ComponentManagerBuilder
	Build() *ComponentManager
}

type managerBuilder struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &managerBuilder{}
}

func (b *managerBuilder) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	b.workers = append(b.workers, worker)
	return b
}

func (b *managerBuilder) Build() *ComponentManager {
	workers := make([]ComponentWorker, len(b.workers))
	copy(workers, b.workers)
	return &ComponentManager{
		started:        atomic.NewBool(false),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		workersDone:    make(chan struct{}),
		shutdownSignal: make(chan struct{}),
		workers:        workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager implements Component for a set of workers. It is ready
// once every worker called its ReadyFunc and done once every worker returned.
// An error thrown by one worker stops the others and is rethrown to the
// context the manager was started with.
type ComponentManager struct {
	started        *atomic.Bool
	ready          chan struct{}
	done           chan struct{}
	workersDone    chan struct{}
	shutdownSignal chan struct{}

	workers []ComponentWorker
}

// Start launches all worker routines. It panics if called more than once.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CAS(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		<-ctx.Done()
		close(c.shutdownSignal)
	}()

	// propagate irrecoverable errors; done closes only after the parent got the error
	go func() {
		defer func() {
			<-c.workersDone
			close(c.done)
		}()
		select {
		case err := <-errChan:
			cancel()
			parent.Throw(err)
		case <-c.workersDone:
			select {
			case err := <-errChan:
				parent.Throw(err)
			default:
			}
		}
	}()

	var workersReady sync.WaitGroup
	var workersDone sync.WaitGroup
	workersReady.Add(len(c.workers))
	workersDone.Add(len(c.workers))

	for _, worker := range c.workers {
		worker := worker
		go func() {
			defer workersDone.Done()
			var readyOnce sync.Once
			worker(signalerCtx, func() {
				readyOnce.Do(workersReady.Done)
			})
		}()
	}

	go func() {
		workersReady.Wait()
		close(c.ready)
	}()
	go func() {
		workersDone.Wait()
		cancel()
		close(c.workersDone)
	}()
}

// Ready never closes if a worker returns without calling its ReadyFunc.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal closes when the start context is cancelled, before the
// workers returned.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.shutdownSignal
}
