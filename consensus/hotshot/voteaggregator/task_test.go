package voteaggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/mocks"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/module/irrecoverable"
	"github.com/onflow/hotshot/module/metrics"
	"github.com/onflow/hotshot/utils/unittest"
)

const epochHeight = 10

// harness runs a vote aggregation task of node 0 of a 4 node committee and
// records everything published on the bus.
type harness struct {
	t         *testing.T
	committee *unittest.CommitteeFixture
	lock      *model.UpgradeLock
	bus       *events.Bus
	out       *events.Subscription
	task      *Task
	stop      context.CancelFunc
}

func newHarness(t *testing.T, version model.Version) *harness {
	h := &harness{
		t:         t,
		committee: unittest.Committee(t, 4),
		lock:      model.StaticUpgradeLock(version),
		bus:       events.NewBus(),
	}

	membership, err := committees.NewStaticMembership(h.committee.Table, h.committee.Table)
	require.NoError(t, err)
	if version.AtLeast(model.EpochVersion) {
		membership.SetFirstEpoch(1, model.InitialDrbResult)
	}
	config := committees.DefaultCoordinatorConfig()
	config.EpochHeight = epochHeight
	coordinator, err := committees.NewEpochMembershipCoordinator(unittest.Logger(), membership, mocks.NewEpochCatchup(t), h.lock, metrics.NewNoopCollector(), config)
	require.NoError(t, err)

	sub := h.bus.Subscribe()
	h.out = h.bus.Subscribe()
	h.task, err = NewTask(unittest.Logger(), h.committee.PublicKey(0), h.lock, coordinator, metrics.NewNoopCollector(), sub, h.bus, TaskConfig{
		Workers:     2,
		EpochHeight: epochHeight,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	h.task.Start(irrecoverable.NewMockSignalerContext(t, ctx))
	unittest.RequireCloseBefore(t, h.task.Ready(), 100*time.Millisecond, "task should start")
	return h
}

func (h *harness) shutdown() {
	h.stop()
	unittest.RequireCloseBefore(h.t, h.task.Done(), time.Second, "task should stop")
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
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for {
		ev, err := h.out.Next(ctx)
		if err != nil {
			return
		}
		require.NotEqual(h.t, kind, ev.Kind(), "unexpected %s event", kind)
	}
}

func publishVotes[D model.VoteData](h *harness, wrap func(*model.SimpleVote[D]) events.Event, data D, view model.View, signers ...int) {
	for _, vote := range signVotes(h.t, h.committee, h.lock, data, view, signers...) {
		h.bus.Publish(wrap(vote))
	}
}

func quorumVote(v *model.QuorumVote2) events.Event { return events.QuorumVoteRecv{Vote: v} }

func TestVoteAggregationTask(t *testing.T) {
	suite.Run(t, new(TaskSuite))
}

type TaskSuite struct {
	suite.Suite
	h *harness
}

func (s *TaskSuite) SetupTest() {
	s.h = newHarness(s.T(), model.BaseVersion)
}

func (s *TaskSuite) TearDownTest() {
	s.h.shutdown()
}

// TestQuorumCertificate checks that a quorum of votes forms exactly one QC,
// even when every node votes.
func (s *TaskSuite) TestQuorumCertificate() {
	data := quorumData(1)
	publishVotes(s.h, quorumVote, data, 5, s.h.committee.All()...)

	ev := s.h.expect(events.KindQc2Formed).(events.Qc2Formed)
	s.Require().NotNil(ev.QC)
	s.Require().Nil(ev.TC)
	s.Equal(model.View(5), ev.QC.ViewNumber)
	s.Equal(data, ev.QC.Data)
	s.Require().NoError(ev.QC.IsValidCert(s.h.committee.Table, 3, s.h.lock))
	s.h.expectNone(events.KindQc2Formed)
}

// TestRepeatedVotesCountOnce checks that a signer voting repeatedly doesn't
// reach the threshold alone.
func (s *TaskSuite) TestRepeatedVotesCountOnce() {
	publishVotes(s.h, quorumVote, quorumData(1), 5, 0, 0, 0, 1, 1)
	s.h.expectNone(events.KindQc2Formed)

	publishVotes(s.h, quorumVote, quorumData(1), 5, 2)
	ev := s.h.expect(events.KindQc2Formed).(events.Qc2Formed)
	s.Equal(model.View(5), ev.View())
}

// TestInvalidVotesAreDropped checks that votes with bad signatures don't
// count and don't stop the task.
func (s *TaskSuite) TestInvalidVotesAreDropped() {
	votes := signVotes(s.T(), s.h.committee, s.h.lock, quorumData(1), 5, s.h.committee.All()...)
	for _, vote := range votes[:3] {
		forged := *vote
		forged.Data = quorumData(2)
		s.h.bus.Publish(events.QuorumVoteRecv{Vote: &forged})
	}
	s.h.expectNone(events.KindQc2Formed)

	for _, vote := range votes {
		s.h.bus.Publish(events.QuorumVoteRecv{Vote: vote})
	}
	s.h.expect(events.KindQc2Formed)
}

func (s *TaskSuite) TestDaCertificate() {
	data := model.DaData2{PayloadCommit: unittest.PayloadCommitmentFixture(3)}
	publishVotes(s.h, func(v *model.DaVote2) events.Event { return events.DaVoteRecv{Vote: v} }, data, 4, 1, 2, 3)

	ev := s.h.expect(events.KindDacSend).(events.DacSend)
	s.Equal(s.h.committee.PublicKey(0), ev.Sender)
	s.Equal(data, ev.Cert.Data)
	s.Require().NoError(ev.Cert.IsValidCert(s.h.committee.Table, 3, s.h.lock))
}

func (s *TaskSuite) TestTimeoutCertificate() {
	data := model.TimeoutData2{View: 6}
	publishVotes(s.h, func(v *model.TimeoutVote2) events.Event { return events.TimeoutVoteRecv{Vote: v} }, data, 6, 0, 1, 3)

	ev := s.h.expect(events.KindQc2Formed).(events.Qc2Formed)
	s.Require().Nil(ev.QC)
	s.Require().NotNil(ev.TC)
	s.Equal(model.View(6), ev.View())
}

// TestViewSyncCertificates checks the one-honest threshold of pre-commit
// certificates and the quorum threshold of commit certificates.
func (s *TaskSuite) TestViewSyncCertificates() {
	preCommit := model.ViewSyncPreCommitData2{Relay: 1, Round: 8}
	publishVotes(s.h, func(v *model.ViewSyncPreCommitVote2) events.Event {
		return events.ViewSyncPreCommitVoteRecv{Vote: v}
	}, preCommit, 8, 2, 3)
	ev := s.h.expect(events.KindViewSyncPreCommitCertificateSend).(events.ViewSyncPreCommitCertificateSend)
	s.Equal(preCommit, ev.Cert.Data)
	s.Require().NoError(ev.Cert.IsValidCert(s.h.committee.Table, 2, s.h.lock))

	commit := model.ViewSyncCommitData2{Relay: 1, Round: 8}
	publishVotes(s.h, func(v *model.ViewSyncCommitVote2) events.Event {
		return events.ViewSyncCommitVoteRecv{Vote: v}
	}, commit, 8, 2, 3)
	s.h.expectNone(events.KindViewSyncCommitCertificateSend)
	publishVotes(s.h, func(v *model.ViewSyncCommitVote2) events.Event {
		return events.ViewSyncCommitVoteRecv{Vote: v}
	}, commit, 8, 1)
	s.h.expect(events.KindViewSyncCommitCertificateSend)

	finalize := model.ViewSyncFinalizeData2{Relay: 1, Round: 8}
	publishVotes(s.h, func(v *model.ViewSyncFinalizeVote2) events.Event {
		return events.ViewSyncFinalizeVoteRecv{Vote: v}
	}, finalize, 8, 0, 1, 2)
	s.h.expect(events.KindViewSyncFinalizeCertificateSend)
}

func (s *TaskSuite) TestUpgradeCertificate() {
	data := model.UpgradeProposalData{
		OldVersion:          model.BaseVersion,
		NewVersion:          model.EpochVersion,
		DecideBy:            20,
		OldVersionLastView:  25,
		NewVersionFirstView: 30,
	}
	publishVotes(s.h, func(v *model.UpgradeVote) events.Event { return events.UpgradeVoteRecv{Vote: v} }, data, 10, 0, 1, 2)

	ev := s.h.expect(events.KindUpgradeCertificateFormed).(events.UpgradeCertificateFormed)
	s.Equal(data, ev.Cert.Data)
	s.Require().NoError(ev.Cert.IsValidCert(s.h.committee.Table, 3, s.h.lock))
}

// TestPruneOnViewChange checks that a view change drops the collectors
// older than the previous view.
func (s *TaskSuite) TestPruneOnViewChange() {
	publishVotes(s.h, quorumVote, quorumData(1), 5, 0, 1)
	s.h.bus.Publish(events.ViewChange{View: 10})
	publishVotes(s.h, quorumVote, quorumData(1), 5, 2, 3)
	s.h.expectNone(events.KindQc2Formed)

	publishVotes(s.h, quorumVote, quorumData(9), 9, 0, 1, 2)
	ev := s.h.expect(events.KindQc2Formed).(events.Qc2Formed)
	s.Equal(model.View(9), ev.View())
}

func TestVoteAggregationTaskWithEpochs(t *testing.T) {
	suite.Run(t, new(EpochTaskSuite))
}

type EpochTaskSuite struct {
	suite.Suite
	h *harness
}

func (s *EpochTaskSuite) SetupTest() {
	s.h = newHarness(s.T(), model.EpochVersion)
	s.h.bus.Publish(events.ViewChange{View: 1, Epoch: 1})
}

func (s *EpochTaskSuite) TearDownTest() {
	s.h.shutdown()
}

func epochQuorumData(seed uint64, epoch model.Epoch, block uint64) model.QuorumData2 {
	data := quorumData(seed)
	data.Epoch = epoch
	data.BlockNumber = &block
	return data
}

// TestExtendedQuorumVotes checks that votes for an epoch transition block
// form the QCs of both epochs.
func (s *EpochTaskSuite) TestExtendedQuorumVotes() {
	data := epochQuorumData(1, 1, 8)
	publishVotes(s.h, quorumVote, data, 12, 0, 1, 2)

	qc := s.h.expect(events.KindQc2Formed).(events.Qc2Formed).QC
	s.Require().NotNil(qc)
	s.Equal(data, qc.Data)

	neqc := s.h.expect(events.KindNextEpochQc2Formed).(events.NextEpochQc2Formed).QC
	s.Equal(data, neqc.Data.QuorumData2)
	s.Equal(qc.VoteCommitment, neqc.VoteCommitment)
	s.Require().NoError(neqc.IsValidCert(s.h.committee.Table, 3, s.h.lock))
}

// TestOrdinaryBlockHasNoNextEpochQC checks that votes outside the
// transition window only form the current epoch's QC.
func (s *EpochTaskSuite) TestOrdinaryBlockHasNoNextEpochQC() {
	publishVotes(s.h, quorumVote, epochQuorumData(1, 1, 3), 4, 0, 1, 2)
	s.h.expect(events.KindQc2Formed)
	s.h.expectNone(events.KindNextEpochQc2Formed)
}

// TestEpochRootCertificate checks that the votes for an epoch root form
// the QC, the light client state certificate and their pair.
func (s *EpochTaskSuite) TestEpochRootCertificate() {
	const view = 6
	data := epochQuorumData(1, 1, 5)
	state := model.LightClientState{ViewNumber: view, BlockHeight: 5}
	next := model.StakeTableStateOf(s.h.committee.Table, 3)

	for _, i := range []int{0, 1, 2} {
		vote, err := model.CreateSignedVote(data, view, s.h.committee.Keys[i], s.h.lock)
		s.Require().NoError(err)
		stateVote, err := model.CreateLightClientStateUpdateVote(1, state, next, s.h.committee.Keys[i])
		s.Require().NoError(err)
		s.h.bus.Publish(events.EpochRootQuorumVoteRecv{Vote: &model.EpochRootQuorumVote{Vote: vote, StateVote: stateVote}})
	}

	root := s.h.expect(events.KindEpochRootQcFormed).(events.EpochRootQcFormed).Cert
	s.Equal(model.View(view), root.QC.ViewNumber)
	s.Equal(state, root.StateCert.LightClientState)
	s.Require().NoError(root.StateCert.Validate(s.h.committee.Table, 3))
}
