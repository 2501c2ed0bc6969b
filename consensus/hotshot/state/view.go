package state

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// ValidatedState is the application state after executing a block. The
// consensus core never inspects it.
type ValidatedState = any

// StateDelta is the change a block applied to its parent's state.
type StateDelta = any

type ViewKind int

const (
	// ViewDa marks a view for which only the DA certificate is known.
	ViewDa ViewKind = iota + 1
	// ViewLeaf marks a view with a validated leaf.
	ViewLeaf
)

func (k ViewKind) String() string {
	switch k {
	case ViewDa:
		return "da"
	case ViewLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// ViewEntry is what the replica knows about one view.
type ViewEntry struct {
	Kind  ViewKind
	Epoch model.Epoch

	// ViewLeaf entries
	Leaf  model.Commitment
	State ValidatedState
	Delta StateDelta

	// ViewDa entries
	PayloadCommitment model.VidCommitment
}

// LeafCommitment returns the leaf of the view, if it has one.
func (v ViewEntry) LeafCommitment() (model.Commitment, bool) {
	if v.Kind != ViewLeaf {
		return model.ZeroCommitment, false
	}
	return v.Leaf, true
}

// PayloadWithMetadata is a block payload held by the DA committee.
type PayloadWithMetadata struct {
	Payload  []byte
	Metadata []byte
}

// LeafInfo describes a leaf together with what a replica has stored for it.
type LeafInfo struct {
	Leaf      *model.Leaf
	State     ValidatedState
	Delta     StateDelta
	VidShare  *model.VidDisperseShare
	StateCert *model.LightClientStateUpdateCertificate
}

// Action is a message a replica can send at most once per view.
type Action int

const (
	ActionVote Action = iota + 1
	ActionPropose
	ActionDaPropose
	ActionDaVote
	ActionTimeoutVote
	ActionViewSyncVote
	ActionUpgradeVote
	ActionUpgradePropose
)

// actionViews holds the latest view of every tracked action.
type actionViews struct {
	proposed   model.View
	voted      model.View
	daProposed model.View
	daVoted    model.View
}

func actionViewsFrom(view model.View) actionViews {
	return actionViews{proposed: view, voted: view, daProposed: view, daVoted: view}
}

// Terminator bounds a walk over leaf ancestors.
type Terminator struct {
	View      model.View
	Inclusive bool
}

// StopBefore ends a walk before visiting the leaf of view.
func StopBefore(view model.View) Terminator { return Terminator{View: view} }

// StopAfter ends a walk after visiting the leaf of view.
func StopAfter(view model.View) Terminator { return Terminator{View: view, Inclusive: true} }
