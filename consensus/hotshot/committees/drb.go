package committees

import (
	"context"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// drbCheckInterval is how many hash iterations run between checks for cancellation.
const drbCheckInterval = 1 << 14

// ComputeDrbResult runs the randomness beacon of an epoch: input.DifficultyLevel
// iterations of SHA3-256 over the seed. input.Iteration iterations are taken
// to be done already, with input.Value as their outcome, so an interrupted
// computation can resume from a checkpoint.
//
// Expected error returns during normal operations:
//   - context.Canceled or context.DeadlineExceeded if ctx ends first
func ComputeDrbResult(ctx context.Context, input model.DrbInput) (model.DrbResult, error) {
	if input.Iteration > input.DifficultyLevel {
		return model.DrbResult{}, fmt.Errorf("iteration %d is past difficulty level %d", input.Iteration, input.DifficultyLevel)
	}

	value := input.Value
	h := sha3.New256()
	for i := input.Iteration; i < input.DifficultyLevel; i++ {
		if (i-input.Iteration)%drbCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return model.DrbResult{}, err
			}
		}
		h.Reset()
		_, _ = h.Write(value[:])
		h.Sum(value[:0])
	}
	return model.DrbResult(value), nil
}

// DrbDifficulty selects the difficulty of the DRB started at the epoch root
// of the given view.
func DrbDifficulty(lock *model.UpgradeLock, view model.View, base, upgraded uint64) uint64 {
	if lock.UpgradedDrbAndHeader(view) {
		return upgraded
	}
	return base
}
