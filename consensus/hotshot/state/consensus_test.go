package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/utils/unittest"
)

const epochHeight = 10

type fixture struct {
	chain     *unittest.ChainFixture
	committee *unittest.CommitteeFixture
}

func newFixture(t *testing.T, withEpoch bool) fixture {
	committee := unittest.Committee(t, 4)
	version := model.BaseVersion
	if withEpoch {
		version = model.EpochVersion
	}
	lock := model.StaticUpgradeLock(version)
	return fixture{
		chain:     unittest.NewChainFixture(t, committee, lock, epochHeight, withEpoch),
		committee: committee,
	}
}

// consensusWith returns a Consensus holding genesis and the leaves, each
// with its view number as state.
func (f fixture) consensusWith(t *testing.T, leaves ...*model.Leaf) *Consensus {
	genesis := f.chain.Genesis()
	c := New(unittest.Logger(), Params{
		HighQC:      f.chain.QC(genesis),
		EpochHeight: epochHeight,
	})
	require.NoError(t, c.UpdateLeaf(genesis, model.GenesisView, nil))
	for _, leaf := range leaves {
		require.NoError(t, c.UpdateLeaf(leaf, leaf.View(), nil))
	}
	return c
}

func TestMonotonicUpdates(t *testing.T) {
	c := New(unittest.Logger(), Params{CurView: 3, LockedView: 2, LastDecidedView: 1})

	assert.ErrorIs(t, c.UpdateView(3), ErrNotNewer)
	require.NoError(t, c.UpdateView(4))
	assert.Equal(t, model.View(4), c.CurView())

	assert.ErrorIs(t, c.UpdateLockedView(2), ErrNotNewer)
	require.NoError(t, c.UpdateLockedView(3))
	assert.ErrorIs(t, c.UpdateLastDecidedView(1), ErrNotNewer)
	require.NoError(t, c.UpdateLastDecidedView(2))

	// any epoch is accepted while none is set
	require.NoError(t, c.UpdateEpoch(2))
	assert.ErrorIs(t, c.UpdateEpoch(2), ErrNotNewer)
	assert.ErrorIs(t, c.UpdateEpoch(1), ErrNotNewer)
	require.NoError(t, c.UpdateEpoch(3))
	assert.Equal(t, model.Epoch(3), c.CurEpoch())
}

func TestUpdateAction(t *testing.T) {
	c := New(unittest.Logger(), Params{LastActionedView: 5})

	assert.False(t, c.UpdateAction(ActionVote, 5))
	assert.True(t, c.UpdateAction(ActionVote, 6))
	assert.False(t, c.UpdateAction(ActionVote, 6))
	assert.True(t, c.UpdateAction(ActionPropose, 6))
	assert.False(t, c.UpdateAction(ActionDaPropose, 4))

	// DA votes and untracked actions never block
	assert.True(t, c.UpdateAction(ActionDaVote, 3))
	assert.True(t, c.UpdateAction(ActionDaVote, 3))
	assert.True(t, c.UpdateAction(ActionTimeoutVote, 1))

	c.ResetActions()
	assert.True(t, c.UpdateAction(ActionVote, 1))
}

func TestUpdateProposedView(t *testing.T) {
	f := newFixture(t, false)
	leaves := f.chain.Build(1, 2, 3)
	c := f.consensusWith(t)
	proposal := func(leaf *model.Leaf) *model.SignedQuorumProposal {
		return &model.SignedQuorumProposal{Data: f.chain.Proposal(leaf)}
	}

	require.NoError(t, c.UpdateProposedView(proposal(leaves[1])))
	assert.ErrorIs(t, c.UpdateProposedView(proposal(leaves[0])), ErrNotNewer)
	assert.ErrorIs(t, c.UpdateProposedView(proposal(leaves[1])), ErrNotNewer)
	require.NoError(t, c.UpdateProposedView(proposal(leaves[2])))
	_, ok := c.LastProposal(2)
	assert.True(t, ok)
}

func TestUpdateLeafKeepsMoreInformation(t *testing.T) {
	f := newFixture(t, false)
	leaf := f.chain.Build(1)[0]
	c := f.consensusWith(t)

	require.NoError(t, c.UpdateDaView(1, model.NoEpoch, leaf.PayloadCommitment()))
	entry, _ := c.ViewEntry(1)
	assert.Equal(t, ViewDa, entry.Kind)
	_, ok := c.State(1)
	assert.False(t, ok)

	// a leaf replaces a DA entry
	require.NoError(t, c.UpdateLeaf(leaf, "state", "delta"))
	state, delta, ok := c.StateAndDelta(1)
	require.True(t, ok)
	assert.Equal(t, "state", state)
	assert.Equal(t, "delta", delta)

	// but neither a DA entry nor a leaf without delta replace the leaf
	assert.ErrorIs(t, c.UpdateDaView(1, model.NoEpoch, leaf.PayloadCommitment()), ErrAlreadyExists)
	assert.ErrorIs(t, c.UpdateLeaf(leaf, "other", nil), ErrAlreadyExists)
	require.NoError(t, c.UpdateLeaf(leaf, "newer", "delta"))
	state, _ = c.State(1)
	assert.Equal(t, "newer", state)

	saved, ok := c.SavedLeaf(leaf.Commit())
	require.True(t, ok)
	assert.Equal(t, leaf, saved)
}

func TestUpdateSavedPayloads(t *testing.T) {
	c := New(unittest.Logger(), Params{})
	require.NoError(t, c.UpdateSavedPayloads(1, &PayloadWithMetadata{Payload: []byte{1}}))
	assert.ErrorIs(t, c.UpdateSavedPayloads(1, &PayloadWithMetadata{Payload: []byte{2}}), ErrAlreadyExists)
	p, ok := c.SavedPayload(1)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, p.Payload)
}

func TestUpdateHighQC(t *testing.T) {
	f := newFixture(t, false)
	leaves := f.chain.Build(1, 2, 3)
	c := f.consensusWith(t, leaves...)

	qc2 := f.chain.QC(leaves[1])
	require.NoError(t, c.UpdateHighQC(qc2))
	require.NoError(t, c.UpdateHighQC(qc2))
	assert.ErrorIs(t, c.UpdateHighQC(f.chain.QC(leaves[0])), ErrNotNewer)
	require.NoError(t, c.UpdateHighQC(f.chain.QC(leaves[2])))
	assert.Equal(t, model.View(3), c.HighQC().View())

	assert.Nil(t, c.NextEpochHighQC())
	require.NoError(t, c.UpdateNextEpochHighQC(f.chain.NextEpochQC(leaves[1])))
	require.NoError(t, c.UpdateNextEpochHighQC(f.chain.NextEpochQC(leaves[1])))
	assert.ErrorIs(t, c.UpdateNextEpochHighQC(f.chain.NextEpochQC(leaves[0])), ErrNotNewer)
}

func TestResetHighQC(t *testing.T) {
	f := newFixture(t, true)
	// block numbers equal views
	leaves := f.chain.Build(1, 2, 3, 4, 5, 6, 7, 8, 9)
	c := f.consensusWith(t, leaves...)
	require.NoError(t, c.UpdateHighQC(f.chain.QC(leaves[7])))

	// block 7 is the transition block of epoch 1, older than the high QC
	transition := leaves[6]
	require.True(t, model.IsTransitionBlock(transition.Height(), epochHeight))
	require.NoError(t, c.ResetHighQC(f.chain.QC(transition), f.chain.NextEpochQC(transition)))
	assert.Equal(t, model.View(7), c.HighQC().View())
	assert.Equal(t, model.View(7), c.NextEpochHighQC().View())

	err := c.ResetHighQC(f.chain.QC(leaves[5]), f.chain.NextEpochQC(leaves[5]))
	assert.ErrorIs(t, err, ErrNotTransitionQC)

	err = c.ResetHighQC(f.chain.QC(transition), f.chain.NextEpochQC(leaves[5]))
	assert.True(t, model.IsInconsistentCommitmentError(err))
}

func TestTransitionQC(t *testing.T) {
	f := newFixture(t, true)
	leaves := f.chain.Build(1, 2, 3, 4, 5, 6, 7)
	transition := leaves[6]

	// derived on construction from matching high QCs of a transition block
	c := New(unittest.Logger(), Params{
		HighQC:          f.chain.QC(transition),
		NextEpochHighQC: f.chain.NextEpochQC(transition),
		EpochHeight:     epochHeight,
	})
	require.NotNil(t, c.TransitionQC())
	assert.Equal(t, model.View(7), c.TransitionQC().QC.View())

	c = New(unittest.Logger(), Params{
		HighQC:          f.chain.QC(transition),
		NextEpochHighQC: f.chain.NextEpochQC(leaves[5]),
		EpochHeight:     epochHeight,
	})
	assert.Nil(t, c.TransitionQC())

	// mismatching and older pairs are ignored
	c.UpdateTransitionQC(f.chain.QC(transition), f.chain.NextEpochQC(leaves[5]))
	assert.Nil(t, c.TransitionQC())
	c.UpdateTransitionQC(f.chain.QC(transition), f.chain.NextEpochQC(transition))
	c.UpdateTransitionQC(f.chain.QC(leaves[5]), f.chain.NextEpochQC(leaves[5]))
	assert.Equal(t, model.View(7), c.TransitionQC().QC.View())
}

func TestUpdateHighestBlock(t *testing.T) {
	c := New(unittest.Logger(), Params{EpochHeight: epochHeight})
	c.UpdateHighestBlock(5)
	c.UpdateHighestBlock(3)
	assert.Equal(t, uint64(5), c.HighestBlock())

	c.UpdateHighestBlock(10)
	c.UpdateHighestBlock(11)
	// block 10 closes epoch 1, which is older than epoch 2 of block 11
	c.UpdateHighestBlock(10)
	assert.Equal(t, uint64(11), c.HighestBlock())

	c = New(unittest.Logger(), Params{EpochHeight: epochHeight})
	c.UpdateHighestBlock(9)
	c.UpdateHighestBlock(8)
	assert.Equal(t, uint64(8), c.HighestBlock())
}

func TestUpdateStateCert(t *testing.T) {
	c := New(unittest.Logger(), Params{})
	require.NoError(t, c.UpdateStateCert(&model.LightClientStateUpdateCertificate{Epoch: 2}))
	assert.ErrorIs(t, c.UpdateStateCert(&model.LightClientStateUpdateCertificate{Epoch: 2}), ErrNotNewer)
	assert.ErrorIs(t, c.UpdateStateCert(&model.LightClientStateUpdateCertificate{Epoch: 1}), ErrNotNewer)
	require.NoError(t, c.UpdateStateCert(&model.LightClientStateUpdateCertificate{Epoch: 3}))
	assert.Equal(t, model.Epoch(3), c.StateCert().Epoch)
}

func TestVisitLeafAncestors(t *testing.T) {
	f := newFixture(t, false)
	leaves := f.chain.Build(1, 2, 3, 4, 5)
	c := f.consensusWith(t, leaves...)

	visit := func(start model.View, term Terminator, okWhenFinished bool, limit int) ([]model.View, error) {
		var views []model.View
		err := c.VisitLeafAncestors(start, term, okWhenFinished, func(leaf *model.Leaf, state ValidatedState, _ StateDelta) bool {
			assert.Equal(t, leaf.View(), state)
			views = append(views, leaf.View())
			return len(views) < limit
		})
		return views, err
	}

	views, err := visit(5, StopAfter(2), true, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.View{5, 4, 3, 2}, views)

	views, err = visit(5, StopBefore(2), true, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.View{5, 4, 3}, views)

	views, err = visit(5, StopAfter(1), true, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.View{5, 4}, views)

	// reaching the terminator without okWhenFinished is reported
	_, err = visit(4, StopAfter(3), false, 10)
	assert.ErrorIs(t, err, ErrMissingLeaf)

	// the parent of genesis is unknown
	views, err = visit(2, StopBefore(100), true, 10)
	assert.ErrorIs(t, err, ErrMissingLeaf)
	assert.Equal(t, []model.View{2, 1, 0}, views)

	require.NoError(t, c.UpdateDaView(7, model.NoEpoch, model.ZeroCommitment))
	_, err = visit(7, StopAfter(1), true, 10)
	assert.ErrorIs(t, err, ErrInconsistentState)
	_, err = visit(8, StopAfter(1), true, 10)
	assert.ErrorIs(t, err, ErrInconsistentState)
}

func TestCollectGarbage(t *testing.T) {
	f := newFixture(t, false)
	leaves := f.chain.Build(1, 2, 3, 4, 5)
	c := f.consensusWith(t, leaves...)
	for _, leaf := range leaves {
		c.UpdateSavedDaCerts(leaf.View(), &model.DaCertificate2{ViewNumber: leaf.View()})
		require.NoError(t, c.UpdateSavedPayloads(leaf.View(), &PayloadWithMetadata{}))
	}

	c.CollectGarbage(3, 3)
	assert.Len(t, c.Views(), 6)

	c.CollectGarbage(2, 4)
	assert.Equal(t, []model.View{3, 4, 5}, c.Views())
	assert.Len(t, c.UndecidedLeaves(), 3)
	_, ok := c.SavedLeaf(leaves[1].Commit())
	assert.False(t, ok)
	_, ok = c.SavedPayload(2)
	assert.False(t, ok)
	_, ok = c.SavedPayload(3)
	assert.True(t, ok)

	// DA certificates are kept from the old anchor on
	_, ok = c.SavedDaCert(1)
	assert.False(t, ok)
	_, ok = c.SavedDaCert(2)
	assert.True(t, ok)
}

func TestDecidedLeaf(t *testing.T) {
	f := newFixture(t, false)
	leaves := f.chain.Build(1, 2)
	c := f.consensusWith(t, leaves...)

	leaf, err := c.DecidedLeaf()
	require.NoError(t, err)
	assert.Equal(t, f.chain.Genesis(), leaf)

	require.NoError(t, c.UpdateLastDecidedView(2))
	leaf, err = c.DecidedLeaf()
	require.NoError(t, err)
	assert.Equal(t, leaves[1], leaf)
	state, err := c.DecidedState()
	require.NoError(t, err)
	assert.Equal(t, model.View(2), state)

	require.NoError(t, c.UpdateLastDecidedView(3))
	_, err = c.DecidedLeaf()
	assert.ErrorIs(t, err, ErrInconsistentState)

	undecided := c.UndecidedLeaves()
	require.Len(t, undecided, 3)
	assert.Equal(t, model.View(2), undecided[2].View())
}

func TestParentLeafInfo(t *testing.T) {
	f := newFixture(t, true)
	// block 5 is the root of epoch 1
	leaves := f.chain.Build(1, 2, 3, 4, 5, 6)
	c := f.consensusWith(t, leaves[:5]...)
	me := f.committee.PublicKey(0)
	share := &model.SignedVidShare{Data: &model.VidDisperseShare{
		ViewNumber:   5,
		RecipientKey: me,
		Epoch:        1,
		TargetEpoch:  1,
	}}
	c.UpdateVidShares(5, share)
	require.NoError(t, c.UpdateStateCert(&model.LightClientStateUpdateCertificate{
		Epoch:            1,
		LightClientState: model.LightClientState{ViewNumber: 5},
	}))

	info, ok := c.ParentLeafInfo(leaves[5], me)
	require.True(t, ok)
	assert.Equal(t, leaves[4], info.Leaf)
	assert.Equal(t, model.View(5), info.State)
	assert.Equal(t, share.Data, info.VidShare)
	require.NotNil(t, info.StateCert)

	info, ok = c.ParentLeafInfo(leaves[5], f.committee.PublicKey(1))
	require.True(t, ok)
	assert.Nil(t, info.VidShare)

	// not an epoch root
	info, ok = c.ParentLeafInfo(leaves[4], me)
	require.True(t, ok)
	assert.Nil(t, info.StateCert)

	_, ok = c.ParentLeafInfo(f.chain.Extend(leaves[5], 7), me)
	assert.False(t, ok)
}

func TestEpochTransitionPredicates(t *testing.T) {
	f := newFixture(t, true)
	leaves := f.chain.Build(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	c := f.consensusWith(t, leaves...)
	byHeight := func(h uint64) *model.Leaf { return leaves[h-1] }

	assert.False(t, c.IsEpochTransition(byHeight(6).Commit()))
	assert.True(t, c.IsEpochTransition(byHeight(7).Commit()))
	assert.True(t, c.IsEpochTransition(byHeight(10).Commit()))
	assert.False(t, c.IsEpochTransition(model.ZeroCommitment))

	assert.True(t, c.IsLeafExtended(byHeight(10).Commit()))
	assert.False(t, c.IsLeafExtended(byHeight(9).Commit()))

	assert.True(t, c.CheckEqc(byHeight(11), byHeight(10)))
	assert.False(t, c.CheckEqc(byHeight(10), byHeight(9)))
	assert.True(t, c.CheckEqc(byHeight(1), f.chain.Genesis()))

	require.NoError(t, c.UpdateHighQC(f.chain.QC(byHeight(4))))
	assert.False(t, c.IsHighQCGeRootBlock())
	assert.False(t, c.IsHighQCForEpochTransition())
	require.NoError(t, c.UpdateHighQC(f.chain.QC(byHeight(5))))
	assert.True(t, c.IsHighQCGeRootBlock())
	require.NoError(t, c.UpdateHighQC(f.chain.QC(byHeight(8))))
	assert.True(t, c.IsHighQCForEpochTransition())
	assert.False(t, c.IsHighQCForLastBlock())

	last := f.chain.QC(byHeight(10))
	require.NoError(t, c.UpdateHighQC(last))
	assert.True(t, c.IsHighQCForLastBlock())
	assert.False(t, c.IsQCFormingEqc(last))
	require.NoError(t, c.UpdateNextEpochHighQC(f.chain.NextEpochQC(byHeight(10))))
	assert.True(t, c.IsQCFormingEqc(last))
}

func TestValidatorParticipation(t *testing.T) {
	committee := unittest.Committee(t, 2)
	a, b := committee.PublicKey(0), committee.PublicKey(1)
	c := New(unittest.Logger(), Params{})
	c.UpdateValidatorParticipationEpoch(1)

	c.UpdateValidatorParticipation(a, 1, true)
	c.UpdateValidatorParticipation(a, 1, false)
	c.UpdateValidatorParticipation(b, 1, true)
	// other epochs are not counted
	c.UpdateValidatorParticipation(b, 2, false)

	current, _, hasPrevious := c.ValidatorParticipation(a)
	assert.Equal(t, 0.5, current)
	assert.False(t, hasPrevious)
	assert.Equal(t, 1.0, c.CurrentProposalParticipation()[b])

	c.UpdateValidatorParticipationEpoch(2)
	current, previous, hasPrevious := c.ValidatorParticipation(a)
	assert.Equal(t, 0.0, current)
	assert.True(t, hasPrevious)
	assert.Equal(t, 0.5, previous)
	assert.Len(t, c.PreviousProposalParticipation(), 2)
	assert.Empty(t, c.CurrentProposalParticipation())
}

func TestDrbResultsGarbageCollect(t *testing.T) {
	d := NewDrbResults()
	for e := model.Epoch(1); e <= 12; e++ {
		d.Store(e, model.DrbResult{byte(e)})
	}
	d.GarbageCollect(5)
	assert.Equal(t, 12, d.Len())

	d.GarbageCollect(12)
	assert.Equal(t, 9, d.Len())
	_, ok := d.Get(3)
	assert.False(t, ok)
	r, ok := d.Get(4)
	require.True(t, ok)
	assert.Equal(t, model.DrbResult{4}, r)
}
