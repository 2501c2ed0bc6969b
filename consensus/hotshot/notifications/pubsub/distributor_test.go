package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onflow/hotshot/consensus/hotshot/mocks"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

func TestDistributor(t *testing.T) {
	d := NewDistributor()

	full := mocks.NewConsumer(t)
	decideOnly := mocks.NewConsumer(t)
	d.AddConsumer(full)
	d.AddDecideConsumer(decideOnly)

	var calls int
	d.AddOnLeavesDecidedConsumer(func(leaves []*model.Leaf, qc *model.QuorumCertificate2) {
		calls++
	})

	leaves := []*model.Leaf{{ViewNumber: 4}}
	qc := &model.QuorumCertificate2{ViewNumber: 5}
	full.On("OnLeavesDecided", leaves, qc).Once()
	decideOnly.On("OnLeavesDecided", leaves, qc).Once()
	full.On("OnViewChange", model.View(6), model.Epoch(1)).Once()

	d.OnLeavesDecided(leaves, qc)
	// only the full consumer gets view changes; decideOnly fails on any other call
	d.OnViewChange(6, 1)

	assert.Equal(t, 1, calls)
}
