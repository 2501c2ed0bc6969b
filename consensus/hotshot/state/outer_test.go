package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/utils/unittest"
)

func TestOuterConsensusExclusion(t *testing.T) {
	outer := NewOuterConsensus(New(unittest.Logger(), Params{}))

	_, releaseRead := outer.Read()
	_, release2, ok := outer.TryRead()
	require.True(t, ok, "readers share the lock")
	release2()
	_, _, ok = outer.TryWrite()
	assert.False(t, ok, "a reader excludes writers")
	releaseRead()

	c, releaseWrite, ok := outer.TryWrite()
	require.True(t, ok)
	_, _, ok = outer.TryRead()
	assert.False(t, ok, "a writer excludes readers")
	require.NoError(t, c.UpdateView(1))
	releaseWrite()

	c, release := outer.Read()
	assert.Equal(t, model.View(1), c.CurView())
	release()
}

func TestOuterConsensusConcurrentWriters(t *testing.T) {
	outer := NewOuterConsensus(New(unittest.Logger(), Params{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, release := outer.Write()
			defer release()
			assert.NoError(t, c.UpdateView(c.CurView()+1))
		}()
	}
	unittest.RequireReturnsBefore(t, wg.Wait, time.Second)

	c, release := outer.Read()
	defer release()
	assert.Equal(t, model.View(50), c.CurView())
}
