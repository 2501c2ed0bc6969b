package quorumproposal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/mocks"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
	"github.com/onflow/hotshot/module/irrecoverable"
	"github.com/onflow/hotshot/module/metrics"
	"github.com/onflow/hotshot/utils/unittest"
)

const epochHeight = 10

type countingMetrics struct {
	*metrics.NoopCollector
	cancelled *atomic.Int64
	proposed  *atomic.Uint64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		NoopCollector: metrics.NewNoopCollector(),
		cancelled:     atomic.NewInt64(0),
		proposed:      atomic.NewUint64(0),
	}
}

func (m *countingMetrics) CountDependencyTaskCancelled(string) { m.cancelled.Inc() }

func (m *countingMetrics) SetProposedView(view uint64) { m.proposed.Store(view) }

// acceptingStorage returns a storage that persists every high QC.
func acceptingStorage(t *testing.T) *mocks.Storage {
	storage := mocks.NewStorage(t)
	storage.On("UpdateHighQC", mock.Anything, mock.Anything).Return(nil).Maybe()
	storage.On("UpdateNextEpochHighQC", mock.Anything, mock.Anything).Return(nil).Maybe()
	return storage
}

// harness runs the quorum proposal task of one node of a 4 node committee
// and records everything published on the bus.
type harness struct {
	t           *testing.T
	epochs      bool
	committee   *unittest.CommitteeFixture
	lock        *model.UpgradeLock
	chain       *unittest.ChainFixture
	coordinator *committees.EpochMembershipCoordinator
	consensus   *state.OuterConsensus
	storage     *mocks.Storage
	metrics     *countingMetrics
	bus         *events.Bus
	out         *events.Subscription
	node        int
	task        *Task
	stop        context.CancelFunc
}

// newHarness prepares a consensus state holding the genesis leaf. The task
// runs once start picks the node. A nil storage accepts every write.
func newHarness(t *testing.T, version model.Version, storage *mocks.Storage) *harness {
	if storage == nil {
		storage = acceptingStorage(t)
	}
	epochs := version.AtLeast(model.EpochVersion)
	h := &harness{
		t:         t,
		epochs:    epochs,
		committee: unittest.Committee(t, 4),
		lock:      model.StaticUpgradeLock(version),
		storage:   storage,
		metrics:   newCountingMetrics(),
		bus:       events.NewBus(),
		stop:      func() {},
	}
	h.chain = unittest.NewChainFixture(t, h.committee, h.lock, epochHeight, epochs)

	membership, err := committees.NewStaticMembership(h.committee.Table, h.committee.Table)
	require.NoError(t, err)
	if epochs {
		membership.SetFirstEpoch(1, model.InitialDrbResult)
	}
	config := committees.DefaultCoordinatorConfig()
	config.EpochHeight = epochHeight
	config.DrbDifficulty = 16
	config.DrbUpgradeDifficulty = 16
	h.coordinator, err = committees.NewEpochMembershipCoordinator(unittest.Logger(), membership, mocks.NewEpochCatchup(t), h.lock, metrics.NewNoopCollector(), config)
	require.NoError(t, err)

	genesis := h.chain.Genesis()
	c := state.New(unittest.Logger(), state.Params{
		EpochHeight: epochHeight,
		HighQC:      h.chain.QC(genesis),
	})
	require.NoError(t, c.UpdateLeaf(genesis, "genesis", uint64(0)))
	h.consensus = state.NewOuterConsensus(c)
	return h
}

// start runs the task as the given node.
func (h *harness) start(node int, viewTimeout time.Duration) {
	var err error
	sub := h.bus.Subscribe()
	h.out = h.bus.Subscribe()
	h.node = node
	h.task, err = NewTask(unittest.Logger(), Config{
		PrivateKey:  h.committee.Keys[node],
		EpochHeight: epochHeight,
		ViewTimeout: viewTimeout,
	}, h.consensus, h.coordinator, h.storage, h.lock, NextHeader{}, h.metrics, sub, h.bus)
	require.NoError(h.t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	h.task.Start(irrecoverable.NewMockSignalerContext(h.t, ctx))
	unittest.RequireCloseBefore(h.t, h.task.Ready(), 100*time.Millisecond, "task should start")
}

func (h *harness) shutdown() {
	h.stop()
	if h.task != nil {
		unittest.RequireCloseBefore(h.t, h.task.Done(), 2*time.Second, "task should stop")
	}
}

func (h *harness) epoch() model.Epoch {
	if h.epochs {
		return 1
	}
	return model.NoEpoch
}

// leaderOf returns the committee index of the leader of view.
func (h *harness) leaderOf(view model.View) int {
	m, err := h.coordinator.MembershipForEpoch(context.Background(), h.epoch())
	require.NoError(h.t, err)
	leader, err := m.Leader(view)
	require.NoError(h.t, err)
	for i := range h.committee.Keys {
		if h.committee.PublicKey(i) == leader {
			return i
		}
	}
	h.t.Fatalf("leader of view %d is not in the committee", view)
	return -1
}

// build extends genesis with a leaf per view and records all of them.
func (h *harness) build(vs ...model.View) []*model.Leaf {
	chain := h.chain.Build(vs...)
	c, release := h.consensus.Write()
	defer release()
	for _, leaf := range chain {
		require.NoError(h.t, c.UpdateLeaf(leaf, "state", leaf.Height()))
	}
	return chain
}

// consecutive returns the views 1 to last.
func consecutive(last model.View) []model.View {
	vs := make([]model.View, 0, last)
	for v := model.View(1); v <= last; v++ {
		vs = append(vs, v)
	}
	return vs
}

// publishPayload hands the leader the payload of view and its dispersal.
func (h *harness) publishPayload(view model.View) model.VidCommitment {
	commit := unittest.PayloadCommitmentFixture(uint64(view) + 1000)
	h.bus.Publish(events.SendPayloadCommitmentAndMetadata{
		ViewNumber:        view,
		Epoch:             h.epoch(),
		Commitment:        commit,
		BuilderCommitment: model.NewCommitmentBuilder("builder").U64Field("view", uint64(view)).Finalize(),
		Metadata:          []byte("metadata"),
	})
	h.bus.Publish(events.VidDisperseSend{
		ViewNumber: view,
		Commitment: commit,
		Sender:     h.committee.PublicKey(h.node),
	})
	return commit
}

// publishQC announces the QC over leaf together with the proposal of leaf.
func (h *harness) publishQC(leaf *model.Leaf) {
	h.bus.Publish(events.QuorumProposalPreliminarilyValidated{
		Proposal: &model.SignedQuorumProposal{Data: h.chain.Proposal(leaf)},
	})
	h.bus.Publish(events.Qc2Formed{QC: h.chain.QC(leaf)})
}

func (h *harness) timeoutCert(view model.View) *model.TimeoutCertificate2 {
	data := model.TimeoutData2{View: view, Epoch: h.epoch()}
	return unittest.Certify[model.TimeoutData2, model.SuccessThreshold](h.t, h.committee, data, view, h.lock, h.committee.All()...)
}

func (h *harness) installHighQC(leaf *model.Leaf) {
	c, release := h.consensus.Write()
	defer release()
	require.NoError(h.t, c.UpdateHighQC(h.chain.QC(leaf)))
}

func (h *harness) expectProposal() *model.SignedQuorumProposal {
	e := h.expect(events.KindQuorumProposalSend).(events.QuorumProposalSend)
	require.Equal(h.t, h.committee.PublicKey(h.node), e.Sender)
	require.NoError(h.t, model.VerifyQuorumProposal(e.Proposal, e.Sender))
	return e.Proposal
}

// expect returns the next published event of the kind.
func (h *harness) expect(kind events.Kind) events.Event {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, err := h.out.Next(ctx)
		require.NoError(h.t, err, "no %s event published", kind)
		if ev.Kind() == kind {
			return ev
		}
	}
}

// expectNone checks that no event of the kind is published for a while.
func (h *harness) expectNone(kind events.Kind) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	for {
		ev, err := h.out.Next(ctx)
		if err != nil {
			return
		}
		require.NotEqual(h.t, kind, ev.Kind(), "unexpected %s event", kind)
	}
}

func (h *harness) highQCs() (*model.QuorumCertificate2, *model.NextEpochQuorumCertificate2) {
	c, release := h.consensus.Read()
	defer release()
	return c.HighQC(), c.NextEpochHighQC()
}

// TestProposeOnQC checks that the leader proposes on the QC of the
// previous view once it also holds the certified proposal, its payload and
// the VID dispersal.
func TestProposeOnQC(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	view := model.View(5)
	h.start(h.leaderOf(view), 0)
	chain := h.build(consecutive(view - 1)...)
	parent := chain[len(chain)-1]

	commit := h.publishPayload(view)
	h.expectNone(events.KindQuorumProposalSend)
	h.publishQC(parent)

	p := h.expectProposal().Data
	assert.Equal(t, view, p.View())
	assert.Equal(t, model.View(4), p.JustifyQC.View())
	assert.Equal(t, parent.Commit(), p.JustifyQC.Data.LeafCommit)
	assert.Equal(t, parent.Height()+1, p.BlockHeader.BlockNumber)
	assert.Equal(t, commit, p.BlockHeader.PayloadCommitment)
	assert.Equal(t, []byte("metadata"), p.BlockHeader.Metadata)
	assert.Nil(t, p.ViewChangeEvidence)
	assert.Nil(t, p.NextEpochJustifyQC)
	assert.Equal(t, model.NoEpoch, p.Epoch)
	h.expectNone(events.KindQuorumProposalSend)

	require.Eventually(t, func() bool { return h.task.LatestProposedView() == view }, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(view), h.metrics.proposed.Load())
	high, _ := h.highQCs()
	assert.Equal(t, model.View(4), high.View())
	h.storage.AssertCalled(t, "UpdateHighQC", mock.Anything, mock.Anything)

	c, release := h.consensus.Read()
	_, ok := c.LastProposal(view)
	release()
	assert.True(t, ok, "sent proposal should be recorded")
}

// TestProposeAfterGenesis checks that the QC of genesis alone justifies the
// proposal of view 1.
func TestProposeAfterGenesis(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	h.start(h.leaderOf(1), 0)

	h.publishPayload(1)
	h.bus.Publish(events.Qc2Formed{QC: h.chain.QC(h.chain.Genesis())})

	p := h.expectProposal().Data
	assert.Equal(t, model.View(1), p.View())
	assert.Equal(t, model.GenesisView, p.JustifyQC.View())
	assert.Equal(t, uint64(1), p.BlockHeader.BlockNumber)
}

// TestNotLeader checks that a node never proposes in views it doesn't lead.
func TestNotLeader(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	view := model.View(5)
	h.start((h.leaderOf(view)+1)%4, 0)
	chain := h.build(consecutive(view - 1)...)

	h.publishPayload(view)
	h.publishQC(chain[len(chain)-1])
	h.expectNone(events.KindQuorumProposalSend)
	assert.False(t, h.task.tasks.Contains(view))
	assert.Equal(t, model.GenesisView, h.task.LatestProposedView())
}

// TestProposeOnTimeoutCertificate checks that a timeout certificate of the
// previous view justifies proposing on the high QC.
func TestProposeOnTimeoutCertificate(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	view := model.View(5)
	h.start(h.leaderOf(view), 0)
	chain := h.build(consecutive(view - 2)...)
	h.installHighQC(chain[len(chain)-1])

	h.publishPayload(view)
	h.bus.Publish(events.Qc2Formed{TC: h.timeoutCert(view - 1)})

	p := h.expectProposal().Data
	assert.Equal(t, view, p.View())
	assert.Equal(t, model.View(3), p.JustifyQC.View())
	require.NotNil(t, p.ViewChangeEvidence)
	require.NotNil(t, p.ViewChangeEvidence.Timeout)
	assert.Equal(t, view-1, p.ViewChangeEvidence.Timeout.View())
	assert.True(t, p.ViewChangeEvidence.IsValidForView(view))
}

// TestProposeOnViewSyncCertificate checks that only a view-sync finalize
// certificate valid against the stake table justifies a proposal.
func TestProposeOnViewSyncCertificate(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	view := model.View(5)
	h.start(h.leaderOf(view), 0)
	chain := h.build(consecutive(view - 3)...)
	h.installHighQC(chain[len(chain)-1])

	data := model.ViewSyncFinalizeData2{Relay: 0, Round: view}
	invalid := unittest.Certify[model.ViewSyncFinalizeData2, model.SuccessThreshold](t, h.committee, data, view, h.lock, 0)
	valid := unittest.Certify[model.ViewSyncFinalizeData2, model.SuccessThreshold](t, h.committee, data, view, h.lock, h.committee.All()...)

	h.publishPayload(view)
	h.bus.Publish(events.ViewSyncFinalizeCertificateRecv{Cert: invalid})
	h.expectNone(events.KindQuorumProposalSend)

	h.bus.Publish(events.ViewSyncFinalizeCertificateRecv{Cert: valid})
	p := h.expectProposal().Data
	require.NotNil(t, p.ViewChangeEvidence)
	require.NotNil(t, p.ViewChangeEvidence.ViewSync)
	assert.Equal(t, valid.Commit(), p.ViewChangeEvidence.ViewSync.Commit())
	assert.Equal(t, model.View(2), p.JustifyQC.View())
}

// TestLatestProposedViewCancelsTasks checks that advancing the latest
// proposed view cancels the pending tasks up to it.
func TestLatestProposedViewCancelsTasks(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	// round robin: a leader leads every fourth view
	vs := []model.View{5, 9, 13}
	h.start(h.leaderOf(vs[0]), 0)
	for _, v := range vs {
		require.Equal(t, h.node, h.leaderOf(v))
		h.publishPayload(v)
	}
	require.Eventually(t, func() bool { return h.task.tasks.Len() == len(vs) }, time.Second, 10*time.Millisecond)

	assert.True(t, h.task.UpdateLatestProposedView(9))
	assert.Equal(t, []model.View{13}, h.task.tasks.Views())
	assert.Equal(t, int64(2), h.metrics.cancelled.Load())
	assert.False(t, h.task.UpdateLatestProposedView(9))

	// views up to the latest proposed one get no new tasks
	h.publishPayload(vs[0])
	h.expectNone(events.KindQuorumProposalSend)
	assert.False(t, h.task.tasks.Contains(vs[0]))
}

// TestViewChangeCancelsOldTasks checks that a view change cancels the tasks
// of views before the previous one.
func TestViewChangeCancelsOldTasks(t *testing.T) {
	h := newHarness(t, model.BaseVersion, nil)
	defer h.shutdown()
	vs := []model.View{5, 9}
	h.start(h.leaderOf(vs[0]), 0)
	for _, v := range vs {
		h.publishPayload(v)
	}
	require.Eventually(t, func() bool { return h.task.tasks.Len() == len(vs) }, time.Second, 10*time.Millisecond)

	h.bus.Publish(events.ViewChange{View: 7})
	require.Eventually(t, func() bool { return !h.task.tasks.Contains(5) }, time.Second, 10*time.Millisecond)
	assert.True(t, h.task.tasks.Contains(9))
}

// TestFormedUpgradeCertificate checks that a formed upgrade certificate is
// proposed only while its deadline leaves time to decide it.
func TestFormedUpgradeCertificate(t *testing.T) {
	cases := map[string]struct {
		decideBy model.View
		proposed bool
	}{
		"in time": {decideBy: 40, proposed: true},
		"late":    {decideBy: 3, proposed: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, model.BaseVersion, nil)
			defer h.shutdown()
			view := model.View(5)
			h.start(h.leaderOf(view), 0)
			require.True(t, h.task.UpdateLatestProposedView(1))
			chain := h.build(consecutive(view - 1)...)

			data := model.UpgradeProposalData{
				OldVersion:          model.BaseVersion,
				NewVersion:          model.EpochVersion,
				DecideBy:            tc.decideBy,
				OldVersionLastView:  49,
				NewVersionFirstView: 50,
			}
			cert := unittest.Certify[model.UpgradeProposalData, model.UpgradeThreshold](t, h.committee, data, 1, h.lock, h.committee.All()...)
			h.bus.Publish(events.UpgradeCertificateFormed{Cert: cert})

			h.publishPayload(view)
			h.publishQC(chain[len(chain)-1])
			p := h.expectProposal().Data
			if tc.proposed {
				require.NotNil(t, p.UpgradeCertificate)
				assert.Equal(t, cert.Commit(), p.UpgradeCertificate.Commit())
			} else {
				assert.Nil(t, p.UpgradeCertificate)
			}
		})
	}
}

// TestProposeOnHighestReceivedQC checks that with epochs a leader proposing
// after a timeout uses the highest valid QC the replicas sent.
func TestProposeOnHighestReceivedQC(t *testing.T) {
	h := newHarness(t, model.EpochVersion, nil)
	defer h.shutdown()
	view := model.View(3)
	h.start(h.leaderOf(view), 400*time.Millisecond)
	chain := h.build(consecutive(view - 1)...)
	parent := chain[len(chain)-1]

	sender := h.committee.PublicKey((h.node + 1) % 4)
	forged := h.chain.QC(parent)
	forged.Data.LeafCommit = model.ZeroCommitment
	h.bus.Publish(events.HighQcRecv{QC: forged, Sender: sender})
	h.bus.Publish(events.HighQcRecv{QC: h.chain.QC(parent), Sender: sender})
	h.publishPayload(view)
	h.bus.Publish(events.Qc2Formed{TC: h.timeoutCert(view - 1)})

	p := h.expectProposal().Data
	assert.Equal(t, parent.Commit(), p.JustifyQC.Data.LeafCommit)
	assert.Equal(t, model.Epoch(1), p.Epoch)
	require.NotNil(t, p.JustifyQC.Data.BlockNumber)
	assert.Equal(t, parent.Height(), *p.JustifyQC.Data.BlockNumber)
}

// TestTransitionQCNeedsNextEpochQC checks that a QC for an epoch transition
// block becomes high QC only together with the next epoch QC of its leaf.
func TestTransitionQCNeedsNextEpochQC(t *testing.T) {
	h := newHarness(t, model.EpochVersion, nil)
	defer h.shutdown()
	// a node that leads none of the following views keeps the test to the QCs
	h.start((h.leaderOf(8)+1)%4, 0)
	chain := h.build(consecutive(7)...)
	leaf := chain[6]
	require.True(t, model.IsTransitionBlock(leaf.Height(), epochHeight))

	h.bus.Publish(events.Qc2Formed{QC: h.chain.QC(leaf)})
	time.Sleep(100 * time.Millisecond)
	high, next := h.highQCs()
	assert.Equal(t, model.GenesisView, high.View())
	assert.Nil(t, next)

	h.bus.Publish(events.NextEpochQc2Formed{QC: h.chain.NextEpochQC(leaf)})
	require.Eventually(t, func() bool {
		high, next := h.highQCs()
		return high.View() == 7 && next != nil && next.View() == 7
	}, time.Second, 10*time.Millisecond)

	c, release := h.consensus.Read()
	transition := c.TransitionQC()
	release()
	require.NotNil(t, transition)
	assert.Equal(t, model.View(7), transition.QC.View())
	h.storage.AssertCalled(t, "UpdateHighQC", mock.Anything, mock.MatchedBy(func(qc *model.QuorumCertificate2) bool {
		return qc.View() == 7
	}))
	h.storage.AssertCalled(t, "UpdateNextEpochHighQC", mock.Anything, mock.MatchedBy(func(qc *model.NextEpochQuorumCertificate2) bool {
		return qc.View() == 7
	}))
}

// TestMiddleTransitionQCNotPersisted checks that high QCs for blocks in the
// middle of the epoch transition are installed but not persisted.
func TestMiddleTransitionQCNotPersisted(t *testing.T) {
	h := newHarness(t, model.EpochVersion, nil)
	defer h.shutdown()
	h.start((h.leaderOf(9)+1)%4, 0)
	chain := h.build(consecutive(8)...)
	leaf := chain[7]
	require.True(t, model.IsMiddleTransitionBlock(leaf.Height(), epochHeight))

	h.bus.Publish(events.NextEpochQc2Formed{QC: h.chain.NextEpochQC(leaf)})
	h.bus.Publish(events.Qc2Formed{QC: h.chain.QC(leaf)})
	require.Eventually(t, func() bool {
		high, next := h.highQCs()
		return high.View() == 8 && next != nil && next.View() == 8
	}, time.Second, 10*time.Millisecond)

	h.storage.AssertNotCalled(t, "UpdateHighQC", mock.Anything, mock.Anything)
	h.storage.AssertNotCalled(t, "UpdateNextEpochHighQC", mock.Anything, mock.Anything)
}

// TestExtendedQCFormed checks that the QC pair for the last block of an
// epoch is announced as extended QC.
func TestExtendedQCFormed(t *testing.T) {
	h := newHarness(t, model.EpochVersion, nil)
	defer h.shutdown()
	h.start(0, 0)
	chain := h.build(consecutive(10)...)
	leaf := chain[9]
	require.True(t, model.IsLastBlock(leaf.Height(), epochHeight))

	h.bus.Publish(events.Qc2Formed{QC: h.chain.QC(leaf)})
	h.expectNone(events.KindExtendedQc2Formed)
	h.bus.Publish(events.NextEpochQc2Formed{QC: h.chain.NextEpochQC(leaf)})

	e := h.expect(events.KindExtendedQc2Formed).(events.ExtendedQc2Formed)
	assert.Equal(t, model.View(10), e.QC.View())
	assert.Equal(t, leaf.Commit(), e.QC.Data.LeafCommit)
}

// TestStaleNextEpochQCIgnored checks that a next epoch QC not newer than the
// next epoch high QC is dropped.
func TestStaleNextEpochQCIgnored(t *testing.T) {
	h := newHarness(t, model.EpochVersion, nil)
	defer h.shutdown()
	h.start((h.leaderOf(9)+1)%4, 0)
	chain := h.build(consecutive(8)...)
	c, release := h.consensus.Write()
	require.NoError(t, c.UpdateNextEpochHighQC(h.chain.NextEpochQC(chain[7])))
	release()

	h.bus.Publish(events.NextEpochQc2Formed{QC: h.chain.NextEpochQC(chain[6])})
	h.bus.Publish(events.Qc2Formed{QC: h.chain.QC(chain[6])})
	time.Sleep(100 * time.Millisecond)
	high, next := h.highQCs()
	assert.Equal(t, model.GenesisView, high.View())
	assert.Equal(t, model.View(8), next.View())
}

func TestCertCachePruning(t *testing.T) {
	cache := newCertCache[string]()
	for _, v := range []model.View{7, 3, 5, 9} {
		cache.put(v, v.String())
	}
	cert, ok := cache.get(5)
	require.True(t, ok)
	assert.Equal(t, "5", cert)

	cache.pruneBelow(6)
	assert.Equal(t, []model.View{7, 9}, cache.views())
	_, ok = cache.get(5)
	assert.False(t, ok)

	cache.put(7, "replaced")
	cert, _ = cache.get(7)
	assert.Equal(t, "replaced", cert)
	cache.pruneBelow(100)
	assert.Empty(t, cache.views())
}

func TestNextHeader(t *testing.T) {
	parent := &model.Leaf{BlockHeader: unittest.HeaderFixture(4)}
	payload := events.SendPayloadCommitmentAndMetadata{
		Commitment: unittest.PayloadCommitmentFixture(9),
		Metadata:   []byte{1, 2},
	}

	t.Run("follows the parent", func(t *testing.T) {
		now := time.Unix(int64(parent.BlockHeader.Timestamp)+60, 0)
		header, err := NextHeader{Now: func() time.Time { return now }}.BuildHeader(context.Background(), nil, parent, payload, model.BaseVersion)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), header.BlockNumber)
		assert.Equal(t, payload.Commitment, header.PayloadCommitment)
		assert.Equal(t, uint64(now.Unix()), header.Timestamp)
	})

	t.Run("never before the parent", func(t *testing.T) {
		past := time.Unix(0, 0)
		header, err := NextHeader{Now: func() time.Time { return past }}.BuildHeader(context.Background(), nil, parent, payload, model.BaseVersion)
		require.NoError(t, err)
		assert.Equal(t, parent.BlockHeader.Timestamp, header.Timestamp)
	})
}
