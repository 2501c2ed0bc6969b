package integration_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// four replicas on a perfect network keep deciding the same chain
func TestHappyPath(t *testing.T) {
	nodes := createNodes(t, NewHub(), 4)
	runNodes(t, nodes)

	requireDecidedAgreement(t, nodes, 8, 30*time.Second)
	for _, node := range nodes {
		require.Positive(t, node.sent.Load(), "node %d never sent a message", node.index)
	}
}

// four replicas running epochs of ten blocks agree on the chain across the
// first epoch boundary, and derive the committee of epoch 3 from the root
// decided in epoch 1
func TestEpochTransition(t *testing.T) {
	nodes := createNodes(t, NewHub(), 4, withEpochs(10))
	runNodes(t, nodes)

	requireDecidedAgreement(t, nodes, 12, 60*time.Second)
	for _, node := range nodes {
		membership := node.participant.Memberships().Membership()
		require.Eventually(t, func() bool {
			return membership.HasRandomizedStakeTable(3)
		}, 10*time.Second, 50*time.Millisecond, "node %d has no committee for epoch 3", node.index)
	}
}

// submitted transactions are taken into payloads by the leaders
func TestTransactionsAreProposed(t *testing.T) {
	nodes := createNodes(t, NewHub(), 4)
	for _, node := range nodes {
		for i := 0; i < 10; i++ {
			require.NoError(t, node.mempool.Submit([]byte(fmt.Sprintf("tx-%d-%d", node.index, i))))
		}
	}
	runNodes(t, nodes)

	require.Eventually(t, func() bool {
		for _, node := range nodes {
			if node.mempool.Len() > 0 {
				return false
			}
		}
		return true
	}, 30*time.Second, 50*time.Millisecond, "not every leader proposed its transactions")
	requireDecidedAgreement(t, nodes, 6, 30*time.Second)
}
