package quorumproposal

import (
	"context"
	"time"

	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
)

// HeaderBuilder builds the header a leader proposes on top of parent.
type HeaderBuilder interface {
	BuildHeader(
		ctx context.Context,
		parentState state.ValidatedState,
		parent *model.Leaf,
		payload events.SendPayloadCommitmentAndMetadata,
		version model.Version,
	) (model.BlockHeader, error)
}

// NextHeader builds the header following the parent's block, stamped with
// the current time but never before the parent.
type NextHeader struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

var _ HeaderBuilder = NextHeader{}

func (b NextHeader) BuildHeader(
	_ context.Context,
	_ state.ValidatedState,
	parent *model.Leaf,
	payload events.SendPayloadCommitmentAndMetadata,
	_ model.Version,
) (model.BlockHeader, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ts := uint64(now().Unix())
	if ts < parent.BlockHeader.Timestamp {
		ts = parent.BlockHeader.Timestamp
	}
	return model.BlockHeader{
		BlockNumber:       parent.Height() + 1,
		PayloadCommitment: payload.Commitment,
		BuilderCommitment: payload.BuilderCommitment,
		Metadata:          payload.Metadata,
		Timestamp:         ts,
	}, nil
}
