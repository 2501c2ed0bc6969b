package leader

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// LeaderSelection answers which member of a stake table leads a view. Without
// a DRB result it rotates through the table; with one, every view draws a
// leader at random with probability proportional to its stake, seeded by the
// DRB result and the view.
type LeaderSelection struct {

	// the members of the committee, in stake table order
	members []signature.PublicKey

	// cumulative stake: weightSums[i] is the stake of members[0..i]
	weightSums []uint64

	// nil selects round robin
	drb *model.DrbResult
}

// ComputeLeaderSelection prepares leader selection over the stake table.
// drb may be nil for epochs without randomized leader selection.
func ComputeLeaderSelection(table model.StakeTable, drb *model.DrbResult) (*LeaderSelection, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("stake table is empty")
	}

	members := make([]signature.PublicKey, 0, len(table))
	// create an array of weight ranges for each member.
	// the i-th member is selected as the leader if the random number falls into its weight range.
	weightSums := make([]uint64, 0, len(table))

	// cumulative sum of weights
	// after cumulating the weights, the sum is the total weight;
	// total weight is used to specify the range of the random number.
	var cumsum uint64
	for _, e := range table {
		cumsum += e.Stake
		members = append(members, e.Key)
		weightSums = append(weightSums, cumsum)
	}
	if cumsum == 0 {
		return nil, fmt.Errorf("total weight must be greater than 0")
	}

	return &LeaderSelection{
		members:    members,
		weightSums: weightSums,
		drb:        drb,
	}, nil
}

// Randomized reports whether leaders are drawn with the DRB result.
func (l *LeaderSelection) Randomized() bool { return l.drb != nil }

// LeaderForView returns the leader of the view.
func (l *LeaderSelection) LeaderForView(view model.View) signature.PublicKey {
	if l.drb == nil {
		return l.members[uint64(view)%uint64(len(l.members))]
	}

	total := l.weightSums[len(l.weightSums)-1]
	// pick a random number from 0 (inclusive) to total (exclusive). Or [0, total)
	randomness := viewRandomness(*l.drb, view) % total

	// binary search to find the leader index by the random number
	return l.members[binarySearchStrictlyBigger(randomness, l.weightSums)]
}

// viewRandomness derives the randomness of a view as SHA3-256(drb || view).
func viewRandomness(drb model.DrbResult, view model.View) uint64 {
	h := sha3.New256()
	_, _ = h.Write(drb[:])
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(view))
	_, _ = h.Write(buf[:])
	return binary.LittleEndian.Uint64(h.Sum(nil)[:8])
}

// binarySearchStriclyBigger finds the index of the first item in the given array that is
// strictly bigger to the given value.
// There are a few assumptions on inputs:
// - `arr` must be non-empty
// - items in `arr` must be in non-decreasing order
// - `value` must be less than the last item in `arr`
func binarySearchStrictlyBigger(value uint64, arr []uint64) int {
	left := 0
	arrayLen := len(arr)
	right := arrayLen - 1
	mid := arrayLen >> 1
	for {
		if arr[mid] <= value {
			left = mid + 1
		} else {
			right = mid
		}

		if left >= right {
			return left
		}

		mid = int(left+right) >> 1
	}
}
