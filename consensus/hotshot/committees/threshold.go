package committees

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// WeightThresholdToBuildQC returns the weight that is minimally required for building a QC.
func WeightThresholdToBuildQC(totalWeight uint64) uint64 {
	// Given totalWeight, we need the smallest integer t such that 2 * totalWeight / 3 < t
	// Formally, the minimally required weight is: 2 * Floor(totalWeight/3) + max(1, totalWeight mod 3)
	floorOneThird := totalWeight / 3 // integer division, includes floor
	res := 2 * floorOneThird
	divRemainder := totalWeight % 3
	if divRemainder <= 1 {
		res = res + 1
	} else {
		res += divRemainder
	}
	return res
}

// WeightThresholdForOneHonest returns the smallest weight t with totalWeight / 3 < t.
// Any set of signers carrying t contains at least one honest signer.
func WeightThresholdForOneHonest(totalWeight uint64) uint64 {
	return totalWeight/3 + 1
}

// WeightThresholdForUpgrade returns the weight required to certify a protocol
// upgrade: 90% of the total, and never less than a quorum.
func WeightThresholdForUpgrade(totalWeight uint64) uint64 {
	res := totalWeight * 9 / 10
	if qc := WeightThresholdToBuildQC(totalWeight); qc > res {
		return qc
	}
	return res
}

// Thresholds are the certificate thresholds of one stake table.
type Thresholds struct {
	total uint64
}

var _ model.Thresholds = Thresholds{}

// NewThresholds computes the thresholds of the stake table.
func NewThresholds(table model.StakeTable) Thresholds {
	return Thresholds{total: table.TotalStake()}
}

func (t Thresholds) TotalStake() uint64 { return t.total }

func (t Thresholds) SuccessThreshold() uint64 { return WeightThresholdToBuildQC(t.total) }

func (t Thresholds) FailureThreshold() uint64 { return WeightThresholdForOneHonest(t.total) }

func (t Thresholds) UpgradeThreshold() uint64 { return WeightThresholdForUpgrade(t.total) }
