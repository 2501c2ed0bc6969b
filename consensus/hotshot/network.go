package hotshot

import (
	"context"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// Network delivers encoded consensus messages to other replicas. Delivery
// is reliable but unordered across messages.
type Network interface {
	// Broadcast sends the message to all replicas of the current committees.
	Broadcast(ctx context.Context, payload []byte) error
	// DirectMessage sends the message to a single replica.
	DirectMessage(ctx context.Context, payload []byte, recipient signature.PublicKey) error
}
