package hotshot

import (
	"context"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// Membership is the node's record of which keys hold stake in which epoch,
// and who leads each view. It only answers from what it already knows;
// learning about future epochs is the job of the committees.EpochMembershipCoordinator.
//
// Before epochs are enabled every query is made with model.NoEpoch and
// answered from the genesis stake table.
//
// Implementations must be safe for concurrent use.
type Membership interface {

	// StakeTable returns the quorum stake table of the epoch, in canonical order.
	// Expected error returns during normal operations:
	//   * model.UnknownEpochError if the stake table of the epoch is not known yet
	StakeTable(epoch model.Epoch) (model.StakeTable, error)

	// DaStakeTable returns the data availability committee of the epoch.
	// Expected error returns during normal operations:
	//   * model.UnknownEpochError if the stake table of the epoch is not known yet
	DaStakeTable(epoch model.Epoch) (model.StakeTable, error)

	// Leader returns the key of the leader of view in epoch. Leader selection
	// is a deterministic function of the view, the epoch's stake table and,
	// once installed, the epoch's DRB result.
	// Expected error returns during normal operations:
	//   * model.UnknownEpochError if the epoch's stake table or DRB result is not known yet
	Leader(view model.View, epoch model.Epoch) (signature.PublicKey, error)

	// HasStakeTable reports whether the stake table of the epoch is known.
	HasStakeTable(epoch model.Epoch) bool

	// HasRandomizedStakeTable reports whether the epoch's leader schedule is
	// known, that is, its stake table and DRB result are both installed.
	HasRandomizedStakeTable(epoch model.Epoch) bool

	// AddEpochStakeTable installs the stake tables of an epoch fetched from a peer.
	AddEpochStakeTable(epoch model.Epoch, quorum, da model.StakeTable) error

	// AddEpochRoot registers the decided epoch root header from which the
	// stake table of epoch is derived.
	AddEpochRoot(ctx context.Context, epoch model.Epoch, header model.BlockHeader) error

	// AddDrbResult installs the randomness of an epoch's leader schedule.
	AddDrbResult(epoch model.Epoch, result model.DrbResult)

	// EpochDrbResult returns the DRB result installed for the epoch.
	// Expected error returns during normal operations:
	//   * model.UnknownEpochError if no result is installed
	EpochDrbResult(epoch model.Epoch) (model.DrbResult, error)

	// SetFirstEpoch marks epoch as the first one run with epochs. The genesis
	// stake table serves it and its successor, both seeded with initialDrb.
	SetFirstEpoch(epoch model.Epoch, initialDrb model.DrbResult)

	// FirstEpoch returns the first epoch, if it has been set.
	FirstEpoch() (model.Epoch, bool)
}

// EpochCatchup fetches what a node needs to catch up with an epoch it
// missed, typically from its peers.
type EpochCatchup interface {

	// FetchStakeTable returns the quorum and DA stake tables of the epoch.
	FetchStakeTable(ctx context.Context, epoch model.Epoch) (quorum, da model.StakeTable, err error)

	// FetchEpochRoot returns the decided epoch root leaf whose justify QC
	// seeds the DRB of epoch.
	FetchEpochRoot(ctx context.Context, epoch model.Epoch) (*model.Leaf, error)
}
