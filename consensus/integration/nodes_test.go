package integration_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/onflow/hotshot/config"
	"github.com/onflow/hotshot/consensus"
	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/da"
	"github.com/onflow/hotshot/consensus/hotshot/mocks"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/persister"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/module/irrecoverable"
	"github.com/onflow/hotshot/module/metrics"
	"github.com/onflow/hotshot/utils/unittest"
)

// Node is one replica of an integration test.
type Node struct {
	index       int
	pk          signature.PublicKey
	participant *consensus.Participant
	mempool     *da.Mempool
	recorder    *DecideRecorder
	persister   *persister.Persister
	sent        *atomic.Uint64
}

// withEpochs runs the chain with epochs from genesis.
func withEpochs(epochHeight uint64) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.EpochHeight = epochHeight
		cfg.Versions.Base = model.EpochVersion.String()
		cfg.DrbDifficulty = 16
		cfg.DrbUpgradeDifficulty = 16
	}
}

func createNodes(t *testing.T, hub *Hub, n int, opts ...func(*config.Config)) []*Node {
	committee := unittest.Committee(t, n)

	cfg := config.Default()
	cfg.ViewTimeout = 5 * time.Second
	for _, apply := range opts {
		apply(&cfg)
	}
	require.NoError(t, cfg.Validate())
	lock, err := cfg.UpgradeLock()
	require.NoError(t, err)
	epochs := lock.EpochsEnabled(model.GenesisView)
	genesis := model.GenesisLeaf(unittest.HeaderFixture(0), epochs)

	nodes := make([]*Node, 0, n)
	for i := 0; i < n; i++ {
		node := createNode(t, hub, i, &cfg, committee, genesis, epochs)
		hub.register(node)
		nodes = append(nodes, node)
	}
	return nodes
}

func createNode(t *testing.T, hub *Hub, index int, cfg *config.Config, committee *unittest.CommitteeFixture, genesis *model.Leaf, epochs bool) *Node {
	sk := committee.Keys[index]
	pk := sk.PublicKey()
	log := unittest.Logger().With().Int("index", index).Logger()

	membership, err := committees.NewStaticMembership(committee.Table, committee.Table)
	require.NoError(t, err)
	catchup := mocks.NewEpochCatchup(t)
	if epochs {
		membership.SetFirstEpoch(1, model.InitialDrbResult)
		// every replica learns the committees from its own decides
		catchup.On("FetchStakeTable", mock.Anything, mock.Anything).Return(nil, nil, errors.New("no peers to catch up from")).Maybe()
		catchup.On("FetchEpochRoot", mock.Anything, mock.Anything).Return(nil, errors.New("no peers to catch up from")).Maybe()
	}
	dir := unittest.TempDir(t)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	store, err := persister.New(log, unittest.BadgerDB(t, dir))
	require.NoError(t, err)
	mempool, err := da.NewMempool(1000, 0)
	require.NoError(t, err)
	recorder := NewDecideRecorder(log)

	participant, err := consensus.NewParticipant(
		context.Background(),
		log,
		cfg,
		sk,
		genesis,
		membership,
		catchup,
		store,
		hub.Network(pk),
		mempool,
		consensus.CreateConsumer(log, recorder),
		metrics.NewNoopCollector(),
	)
	require.NoError(t, err)

	return &Node{
		index:       index,
		pk:          pk,
		participant: participant,
		mempool:     mempool,
		recorder:    recorder,
		persister:   store,
		sent:        atomic.NewUint64(0),
	}
}

// runNodes starts all nodes and stops them when the test ends.
func runNodes(t *testing.T, nodes []*Node) {
	ctx, cancel := context.WithCancel(context.Background())
	signaler := irrecoverable.NewMockSignalerContext(t, ctx)
	for _, node := range nodes {
		node.participant.Start(signaler)
	}
	for _, node := range nodes {
		unittest.RequireCloseBefore(t, node.participant.Ready(), 5*time.Second, fmt.Sprintf("node %d did not start", node.index))
	}
	t.Cleanup(func() {
		cancel()
		cleanupNodes(t, nodes)
	})
}

func cleanupNodes(t *testing.T, nodes []*Node) {
	for _, node := range nodes {
		unittest.RequireCloseBefore(t, node.participant.Done(), 5*time.Second, fmt.Sprintf("node %d did not stop", node.index))
		require.NoError(t, node.persister.Close())
	}
}

// requireDecidedAgreement waits until every node decided height and checks
// that all of them decided the same leaves up to it.
func requireDecidedAgreement(t *testing.T, nodes []*Node, height uint64, timeout time.Duration) {
	require.Eventually(t, func() bool {
		for _, node := range nodes {
			if node.recorder.Highest() < height {
				return false
			}
		}
		return true
	}, timeout, 50*time.Millisecond, "not all nodes decided height %d", height)

	for _, node := range nodes {
		require.Empty(t, node.recorder.Conflicts(), "node %d decided conflicting leaves", node.index)
	}
	for h := uint64(1); h <= height; h++ {
		expected, ok := nodes[0].recorder.Decided(h)
		require.True(t, ok, "node 0 skipped height %d", h)
		for _, node := range nodes[1:] {
			commit, ok := node.recorder.Decided(h)
			require.True(t, ok, "node %d skipped height %d", node.index, h)
			require.Equal(t, expected, commit, "node %d decided a different leaf at height %d", node.index, h)
		}
	}
}
