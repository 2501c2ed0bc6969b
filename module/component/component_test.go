package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/module/irrecoverable"
	"github.com/onflow/hotshot/utils/unittest"
)

func TestComponentManagerLifecycle(t *testing.T) {
	release := make(chan struct{})
	cm := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			<-release
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx := irrecoverable.NewMockSignalerContext(t, ctx)
	cm.Start(signalerCtx)

	unittest.RequireNeverClosedWithin(t, cm.Ready(), 20*time.Millisecond, "ready before all workers")
	close(release)
	unittest.RequireCloseBefore(t, cm.Ready(), time.Second, "workers should be ready")

	cancel()
	unittest.RequireCloseBefore(t, cm.ShutdownSignal(), time.Second, "shutdown should be signalled")
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "workers should stop")

	assert.PanicsWithError(t, "component may only be started once", func() {
		cm.Start(signalerCtx)
	})
}

func TestComponentManagerThrow(t *testing.T) {
	failure := errors.New("boom")
	cm := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ctx.Throw(failure)
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	signalerCtx, errChan := irrecoverable.WithSignaler(context.Background())
	cm.Start(signalerCtx)

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, failure)
	case <-time.After(time.Second):
		t.Fatal("error was not propagated")
	}
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "other workers should stop")
}
