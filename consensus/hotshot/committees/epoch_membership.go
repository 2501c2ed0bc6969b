package committees

import (
	"context"
	"errors"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// ErrNoNextEpoch is returned when asking for the epoch after model.NoEpoch.
var ErrNoNextEpoch = errors.New("epochs are not in effect")

// EpochMembership is a snapshot of the committee of one epoch, resolved by
// the EpochMembershipCoordinator. Stake tables of an epoch never change once
// known, so the snapshot stays valid for the life of the node.
type EpochMembership struct {
	coordinator *EpochMembershipCoordinator
	epoch       model.Epoch
	quorum      model.StakeTable
	da          model.StakeTable
	thresholds  Thresholds
	daThreshold Thresholds
}

var _ model.Thresholds = (*EpochMembership)(nil)

func (m *EpochMembership) Epoch() model.Epoch { return m.epoch }

// Leader returns the leader of the view in this epoch.
// Expected error returns during normal operations:
//   - model.UnknownEpochError if the leader schedule of the epoch is not known
func (m *EpochMembership) Leader(view model.View) (signature.PublicKey, error) {
	return m.coordinator.membership.Leader(view, m.epoch)
}

func (m *EpochMembership) StakeTable() model.StakeTable { return m.quorum }

func (m *EpochMembership) DaStakeTable() model.StakeTable { return m.da }

func (m *EpochMembership) StakeTableEntry(key signature.PublicKey) (model.StakeTableEntry, bool) {
	e, _, ok := m.quorum.Lookup(key)
	return e, ok
}

func (m *EpochMembership) DaStakeTableEntry(key signature.PublicKey) (model.StakeTableEntry, bool) {
	e, _, ok := m.da.Lookup(key)
	return e, ok
}

func (m *EpochMembership) HasStake(key signature.PublicKey) bool { return m.quorum.Contains(key) }

func (m *EpochMembership) HasDaStake(key signature.PublicKey) bool { return m.da.Contains(key) }

func (m *EpochMembership) CommitteeMembers() []signature.PublicKey { return m.quorum.Keys() }

func (m *EpochMembership) DaCommitteeMembers() []signature.PublicKey { return m.da.Keys() }

func (m *EpochMembership) TotalStake() uint64 { return m.thresholds.TotalStake() }

func (m *EpochMembership) TotalDaStake() uint64 { return m.daThreshold.TotalStake() }

func (m *EpochMembership) TotalNodes() int { return len(m.quorum) }

func (m *EpochMembership) DaTotalNodes() int { return len(m.da) }

func (m *EpochMembership) SuccessThreshold() uint64 { return m.thresholds.SuccessThreshold() }

func (m *EpochMembership) FailureThreshold() uint64 { return m.thresholds.FailureThreshold() }

func (m *EpochMembership) UpgradeThreshold() uint64 { return m.thresholds.UpgradeThreshold() }

func (m *EpochMembership) DaSuccessThreshold() uint64 { return m.daThreshold.SuccessThreshold() }

// DaThresholds returns the thresholds of the DA committee, to validate DA
// certificates with.
func (m *EpochMembership) DaThresholds() model.Thresholds { return m.daThreshold }

// NextEpoch resolves the full membership of the following epoch.
func (m *EpochMembership) NextEpoch(ctx context.Context) (*EpochMembership, error) {
	if m.epoch == model.NoEpoch {
		return nil, ErrNoNextEpoch
	}
	return m.coordinator.MembershipForEpoch(ctx, m.epoch.Next())
}

// NextEpochStakeTable resolves only the stake tables of the following epoch.
func (m *EpochMembership) NextEpochStakeTable(ctx context.Context) (*EpochMembership, error) {
	if m.epoch == model.NoEpoch {
		return nil, ErrNoNextEpoch
	}
	return m.coordinator.StakeTableForEpoch(ctx, m.epoch.Next())
}

// GetEpoch resolves the full membership of another epoch.
func (m *EpochMembership) GetEpoch(ctx context.Context, epoch model.Epoch) (*EpochMembership, error) {
	return m.coordinator.MembershipForEpoch(ctx, epoch)
}
