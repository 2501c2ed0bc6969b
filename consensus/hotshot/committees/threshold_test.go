package committees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestComputeQCWeightThreshold tests computing the HotShot safety threshold
// for producing a QC.
func TestComputeQCWeightThreshold(t *testing.T) {
	// testing lowest values
	for i := 1; i <= 302; i++ {
		threshold := WeightThresholdToBuildQC(uint64(i))

		boundaryValue := float64(i) * 2.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
}

// TestComputeOneHonestWeightThreshold tests computing the threshold of
// view-sync pre-commit certificates.
func TestComputeOneHonestWeightThreshold(t *testing.T) {
	// testing lowest values
	for i := 1; i <= 302; i++ {
		threshold := WeightThresholdForOneHonest(uint64(i))

		boundaryValue := float64(i) * 1.0 / 3.0
		assert.True(t, boundaryValue < float64(threshold))
		assert.False(t, boundaryValue < float64(threshold-1))
	}
}

func TestComputeUpgradeWeightThreshold(t *testing.T) {
	assert.Equal(t, uint64(3), WeightThresholdForUpgrade(3))
	assert.Equal(t, uint64(9), WeightThresholdForUpgrade(10))
	assert.Equal(t, uint64(90), WeightThresholdForUpgrade(100))
}

// TestThresholdOrdering checks that, for any committee, an upgrade needs at
// least a quorum and a quorum at least one honest signer.
func TestThresholdOrdering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.Uint64Range(1, 1<<40).Draw(t, "total")
		th := Thresholds{total: total}

		if th.FailureThreshold() > th.SuccessThreshold() {
			t.Fatalf("one-honest threshold %d above quorum %d", th.FailureThreshold(), th.SuccessThreshold())
		}
		if th.SuccessThreshold() > th.UpgradeThreshold() {
			t.Fatalf("quorum %d above upgrade threshold %d", th.SuccessThreshold(), th.UpgradeThreshold())
		}
		if th.UpgradeThreshold() > total {
			t.Fatalf("upgrade threshold %d above total %d", th.UpgradeThreshold(), total)
		}
		// two quorums always intersect in more than a third of the stake
		if 2*th.SuccessThreshold()-total < th.FailureThreshold() {
			t.Fatalf("quorums of %d do not intersect in an honest signer (total %d)", th.SuccessThreshold(), total)
		}
	})
}
