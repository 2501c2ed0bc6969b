package committees

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/onflow/hotshot/consensus/hotshot/mocks"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/module/metrics"
	"github.com/onflow/hotshot/utils/unittest"
)

func TestEpochMembershipCoordinator(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

type CoordinatorSuite struct {
	suite.Suite

	committee   *unittest.CommitteeFixture
	next        model.StakeTable
	root        *model.Leaf
	membership  *StaticMembership
	catchup     *mocks.EpochCatchup
	coordinator *EpochMembershipCoordinator
}

func (s *CoordinatorSuite) SetupTest() {
	s.committee = unittest.Committee(s.T(), 4)
	s.next = unittest.StakeTableFixture(unittest.KeyPairs(s.T(), 7)[3:], 2)

	lock := model.StaticUpgradeLock(model.EpochVersion)
	chain := unittest.NewChainFixture(s.T(), s.committee, lock, 10, true)
	s.root = chain.Build(1, 2, 3)[2]

	var err error
	s.membership, err = NewStaticMembership(s.committee.Table, s.committee.Table)
	s.Require().NoError(err)
	s.membership.SetFirstEpoch(1, model.InitialDrbResult)

	s.catchup = mocks.NewEpochCatchup(s.T())
	config := DefaultCoordinatorConfig()
	config.EpochHeight = 10
	config.DrbDifficulty = 16
	config.DrbUpgradeDifficulty = 32
	config.RetryInitial = time.Millisecond
	config.RetryMax = 5 * time.Millisecond
	config.RetryAttempts = 3
	s.coordinator, err = NewEpochMembershipCoordinator(unittest.Logger(), s.membership, s.catchup, lock, metrics.NewNoopCollector(), config)
	s.Require().NoError(err)
}

// TestKnownEpochsNeedNoCatchup checks that genesis and the first two epochs
// resolve locally.
func (s *CoordinatorSuite) TestKnownEpochsNeedNoCatchup() {
	ctx := context.Background()
	for _, epoch := range []model.Epoch{model.NoEpoch, 1, 2} {
		m, err := s.coordinator.MembershipForEpoch(ctx, epoch)
		s.Require().NoError(err)
		s.Equal(epoch, m.Epoch())
		s.Equal(s.committee.Table, m.StakeTable())
		s.Equal(uint64(3), m.SuccessThreshold())
		s.Equal(uint64(2), m.FailureThreshold())
		s.Equal(uint64(3), m.UpgradeThreshold())
		s.Equal(uint64(3), m.DaSuccessThreshold())
		s.Equal(4, m.TotalNodes())
		s.True(m.HasStake(s.committee.PublicKey(0)))
		s.Equal(CatchupReady, s.coordinator.Status(epoch))
	}
	s.catchup.AssertNotCalled(s.T(), "FetchStakeTable", mock.Anything, mock.Anything)
}

// TestFullCatchup checks that an unknown epoch gets both its stake table and
// its DRB result installed.
func (s *CoordinatorSuite) TestFullCatchup() {
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).Return(s.next, s.next, nil).Once()
	s.catchup.On("FetchEpochRoot", mock.Anything, model.Epoch(3)).Return(s.root, nil).Once()
	s.Equal(CatchupUnknown, s.coordinator.Status(3))

	m, err := s.coordinator.MembershipForEpoch(context.Background(), 3)
	s.Require().NoError(err)
	s.Equal(s.next, m.StakeTable())
	s.Equal(uint64(8), m.TotalStake())
	s.Equal(CatchupReady, s.coordinator.Status(3))

	expected, err := s.coordinator.ComputeDrbFromRoot(context.Background(), 3, s.root)
	s.Require().NoError(err)
	drb, err := s.membership.EpochDrbResult(3)
	s.Require().NoError(err)
	s.Equal(expected, drb)

	leader, err := m.Leader(25)
	s.Require().NoError(err)
	s.True(s.next.Contains(leader))

	// resolved memberships are cached
	again, err := s.coordinator.MembershipForEpoch(context.Background(), 3)
	s.Require().NoError(err)
	s.Same(m, again)
}

// TestStakeTableOnly checks that the light path doesn't wait for the DRB.
func (s *CoordinatorSuite) TestStakeTableOnly() {
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).Return(s.next, s.next, nil).Once()

	m, err := s.coordinator.StakeTableForEpoch(context.Background(), 3)
	s.Require().NoError(err)
	s.Equal(s.next, m.DaStakeTable())
	s.False(s.membership.HasRandomizedStakeTable(3))
	s.catchup.AssertNotCalled(s.T(), "FetchEpochRoot", mock.Anything, mock.Anything)

	_, err = m.Leader(25)
	s.True(model.IsUnknownEpochError(err))
}

// TestConcurrentCatchupsShareOneFetch checks that callers racing for the
// same unknown epoch trigger a single catch-up.
func (s *CoordinatorSuite) TestConcurrentCatchupsShareOneFetch() {
	release := make(chan struct{})
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).
		Run(func(mock.Arguments) { <-release }).
		Return(s.next, s.next, nil).Once()
	s.catchup.On("FetchEpochRoot", mock.Anything, model.Epoch(3)).Return(s.root, nil).Once()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.coordinator.MembershipForEpoch(context.Background(), 3)
			s.Require().NoError(err)
			s.Equal(s.next, m.StakeTable())
		}()
	}

	s.Require().Eventually(func() bool {
		return s.coordinator.Status(3) == CatchupFetching
	}, time.Second, time.Millisecond)
	close(release)
	unittest.RequireReturnsBefore(s.T(), wg.Wait, time.Second)

	s.catchup.AssertNumberOfCalls(s.T(), "FetchStakeTable", 1)
	s.catchup.AssertNumberOfCalls(s.T(), "FetchEpochRoot", 1)
}

// TestCatchupRetries checks that transient fetch failures are retried.
func (s *CoordinatorSuite) TestCatchupRetries() {
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).Return(nil, nil, errors.New("peer unavailable")).Twice()
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).Return(s.next, s.next, nil).Once()
	s.catchup.On("FetchEpochRoot", mock.Anything, model.Epoch(3)).Return(s.root, nil)

	_, err := s.coordinator.MembershipForEpoch(context.Background(), 3)
	s.Require().NoError(err)
	s.catchup.AssertNumberOfCalls(s.T(), "FetchStakeTable", 3)
}

// TestCatchupGivesUp checks that a catch-up fails once its retries are
// exhausted, and that the next request starts over.
func (s *CoordinatorSuite) TestCatchupGivesUp() {
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).Return(nil, nil, errors.New("peer unavailable"))
	s.catchup.On("FetchEpochRoot", mock.Anything, model.Epoch(3)).Return(s.root, nil).Maybe()

	_, err := s.coordinator.MembershipForEpoch(context.Background(), 3)
	s.Require().Error(err)
	s.catchup.AssertNumberOfCalls(s.T(), "FetchStakeTable", 4)
	s.Equal(CatchupUnknown, s.coordinator.Status(3))

	_, err = s.coordinator.StakeTableForEpoch(context.Background(), 3)
	s.Require().Error(err)
	s.catchup.AssertNumberOfCalls(s.T(), "FetchStakeTable", 8)
}

// TestCancelledCatchup checks that callers can abandon a catch-up.
func (s *CoordinatorSuite) TestCancelledCatchup() {
	s.catchup.On("FetchStakeTable", mock.Anything, model.Epoch(3)).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, nil, context.Canceled)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.coordinator.StakeTableForEpoch(ctx, 3)
	s.Require().Error(err)
	s.Require().ErrorIs(err, context.DeadlineExceeded)
}

func TestInvalidCoordinatorConfig(t *testing.T) {
	membership, err := NewStaticMembership(unittest.Committee(t, 1).Table, nil)
	require.NoError(t, err)
	config := DefaultCoordinatorConfig()
	config.RetryInitial = 0
	_, err = NewEpochMembershipCoordinator(unittest.Logger(), membership, mocks.NewEpochCatchup(t), model.StaticUpgradeLock(model.BaseVersion), metrics.NewNoopCollector(), config)
	require.True(t, model.IsConfigurationError(err))
}
