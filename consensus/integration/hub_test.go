package integration_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// Hub connects the nodes of a test in memory. Messages are handed to the
// receiving node right away; its event queues are unbounded.
type Hub struct {
	mu    sync.RWMutex
	nodes map[signature.PublicKey]*Node
}

func NewHub() *Hub {
	return &Hub{nodes: make(map[signature.PublicKey]*Node)}
}

func (h *Hub) register(n *Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[n.pk] = n
}

// Network returns the network view of the node with key pk.
func (h *Hub) Network(pk signature.PublicKey) hotshot.Network {
	return &hubNetwork{hub: h, self: pk}
}

type hubNetwork struct {
	hub  *Hub
	self signature.PublicKey
}

func (n *hubNetwork) Broadcast(_ context.Context, payload []byte) error {
	n.hub.mu.RLock()
	defer n.hub.mu.RUnlock()
	sender := n.hub.nodes[n.self]
	for _, receiver := range n.hub.nodes {
		n.hub.deliver(sender, receiver, payload)
	}
	return nil
}

func (n *hubNetwork) DirectMessage(_ context.Context, payload []byte, recipient signature.PublicKey) error {
	n.hub.mu.RLock()
	defer n.hub.mu.RUnlock()
	receiver, ok := n.hub.nodes[recipient]
	if !ok {
		return fmt.Errorf("unknown recipient %s", recipient)
	}
	n.hub.deliver(n.hub.nodes[n.self], receiver, payload)
	return nil
}

func (h *Hub) deliver(sender, receiver *Node, payload []byte) {
	if sender == nil {
		return
	}
	sender.sent.Inc()
	// a receiver that shut down drops the message
	_ = receiver.participant.Deliver(payload, sender.pk)
}
