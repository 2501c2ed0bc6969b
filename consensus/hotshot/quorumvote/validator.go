package quorumvote

import (
	"context"
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
)

// StateValidator executes a proposed block header on top of its parent's
// state. Consensus treats the resulting state as opaque.
type StateValidator interface {
	// ValidateAndApplyHeader returns the state after header and the delta
	// from the parent state.
	//
	// Expected error returns during normal operations:
	//   - any error if the header doesn't extend the parent; the replica doesn't vote
	ValidateAndApplyHeader(
		ctx context.Context,
		parentState state.ValidatedState,
		parent *model.Leaf,
		header model.BlockHeader,
		payloadSize uint64,
		version model.Version,
		view model.View,
	) (state.ValidatedState, state.StateDelta, error)
}

// HeightValidator only checks that the header's block number follows the
// parent's, and carries the parent state over unchanged. The last block of
// an epoch may be repeated until the epoch transition completes.
type HeightValidator struct {
	EpochHeight uint64
}

var _ StateValidator = HeightValidator{}

func (v HeightValidator) ValidateAndApplyHeader(
	_ context.Context,
	parentState state.ValidatedState,
	parent *model.Leaf,
	header model.BlockHeader,
	_ uint64,
	_ model.Version,
	view model.View,
) (state.ValidatedState, state.StateDelta, error) {
	switch {
	case header.BlockNumber == parent.Height()+1:
	case header.BlockNumber == parent.Height() && model.IsLastBlock(parent.Height(), v.EpochHeight):
	default:
		return nil, nil, fmt.Errorf("block %d proposed in view %d doesn't extend parent block %d", header.BlockNumber, view, parent.Height())
	}
	return parentState, header.BlockNumber, nil
}
