package model

// VoteData is what a SimpleVote signs and a SimpleCertificate certifies.
type VoteData interface {
	Committable
}

// QuorumData is the pre-epoch quorum vote payload.
type QuorumData struct {
	LeafCommit Commitment
}

func (d QuorumData) Commit() Commitment {
	return NewCommitmentBuilder("Quorum data").
		Field("leaf_commit", d.LeafCommit).
		Finalize()
}

// QuorumData2 is a vote for a leaf. Epoch and BlockNumber are set once epochs
// are enabled; without them the commitment equals that of QuorumData.
type QuorumData2 struct {
	LeafCommit  Commitment
	Epoch       Epoch
	BlockNumber *uint64
}

func (d QuorumData2) Commit() Commitment {
	return NewCommitmentBuilder("Quorum data").
		Field("leaf_commit", d.LeafCommit).
		EpochField(d.Epoch).
		OptionalU64Field("block_number", d.BlockNumber).
		Finalize()
}

func (d QuorumData2) DataEpoch() Epoch { return d.Epoch }

// Block returns the block number, if set.
func (d QuorumData2) Block() (uint64, bool) {
	if d.BlockNumber == nil {
		return 0, false
	}
	return *d.BlockNumber, true
}

func (d QuorumData2) Equal(o QuorumData2) bool {
	if d.LeafCommit != o.LeafCommit || d.Epoch != o.Epoch {
		return false
	}
	a, okA := d.Block()
	b, okB := o.Block()
	return okA == okB && a == b
}

// NextEpochQuorumData2 is the same payload as QuorumData2, validated against
// the next epoch's stake table. It commits exactly like QuorumData2, so a
// single extended vote counts towards both certificates of an EQC.
type NextEpochQuorumData2 struct {
	QuorumData2
}

// DaData is the pre-epoch data availability vote payload.
type DaData struct {
	PayloadCommit VidCommitment
}

func (d DaData) Commit() Commitment {
	return NewCommitmentBuilder("DA data").
		Field("payload_commit", d.PayloadCommit).
		Finalize()
}

// DaData2 attests availability of a payload. During an epoch transition the
// payload is dispersed twice, and NextEpochPayloadCommit binds the dispersal
// to the next epoch's committee.
type DaData2 struct {
	PayloadCommit          VidCommitment
	NextEpochPayloadCommit *VidCommitment
	Epoch                  Epoch
}

func (d DaData2) Commit() Commitment {
	return NewCommitmentBuilder("DA data").
		Field("payload_commit", d.PayloadCommit).
		OptionalField("next_epoch_payload_commit", d.NextEpochPayloadCommit).
		EpochField(d.Epoch).
		Finalize()
}

func (d DaData2) DataEpoch() Epoch { return d.Epoch }

// TimeoutData is a vote to leave View without a QC.
type TimeoutData struct {
	View View
}

func (d TimeoutData) Commit() Commitment {
	return NewCommitmentBuilder("Timeout data").
		U64Field("view", uint64(d.View)).
		Finalize()
}

type TimeoutData2 struct {
	View  View
	Epoch Epoch
}

func (d TimeoutData2) Commit() Commitment {
	return NewCommitmentBuilder("Timeout data").
		U64Field("view", uint64(d.View)).
		EpochField(d.Epoch).
		Finalize()
}

func (d TimeoutData2) DataEpoch() Epoch { return d.Epoch }

// ViewSyncPreCommitData is the first phase of view synchronization.
type ViewSyncPreCommitData struct {
	Relay uint64
	Round View
}

func (d ViewSyncPreCommitData) Commit() Commitment {
	return viewSyncCommit("View Sync Precommit", d.Relay, d.Round, NoEpoch)
}

type ViewSyncPreCommitData2 struct {
	Relay uint64
	Round View
	Epoch Epoch
}

func (d ViewSyncPreCommitData2) Commit() Commitment {
	return viewSyncCommit("View Sync Precommit", d.Relay, d.Round, d.Epoch)
}

func (d ViewSyncPreCommitData2) DataEpoch() Epoch { return d.Epoch }

type ViewSyncCommitData struct {
	Relay uint64
	Round View
}

func (d ViewSyncCommitData) Commit() Commitment {
	return viewSyncCommit("View Sync Commit", d.Relay, d.Round, NoEpoch)
}

type ViewSyncCommitData2 struct {
	Relay uint64
	Round View
	Epoch Epoch
}

func (d ViewSyncCommitData2) Commit() Commitment {
	return viewSyncCommit("View Sync Commit", d.Relay, d.Round, d.Epoch)
}

func (d ViewSyncCommitData2) DataEpoch() Epoch { return d.Epoch }

type ViewSyncFinalizeData struct {
	Relay uint64
	Round View
}

func (d ViewSyncFinalizeData) Commit() Commitment {
	return viewSyncCommit("View Sync Finalize", d.Relay, d.Round, NoEpoch)
}

type ViewSyncFinalizeData2 struct {
	Relay uint64
	Round View
	Epoch Epoch
}

func (d ViewSyncFinalizeData2) Commit() Commitment {
	return viewSyncCommit("View Sync Finalize", d.Relay, d.Round, d.Epoch)
}

func (d ViewSyncFinalizeData2) DataEpoch() Epoch { return d.Epoch }

func viewSyncCommit(tag string, relay uint64, round View, epoch Epoch) Commitment {
	return NewCommitmentBuilder(tag).
		U64Field("round", uint64(round)).
		U64Field("relay", relay).
		EpochField(epoch).
		Finalize()
}

// UpgradeProposalData proposes moving from OldVersion to NewVersion. Views in
// (OldVersionLastView, NewVersionFirstView) run no version at all.
type UpgradeProposalData struct {
	OldVersion          Version
	NewVersion          Version
	DecideBy            View
	NewVersionHash      []byte
	OldVersionLastView  View
	NewVersionFirstView View
}

func (d UpgradeProposalData) Commit() Commitment {
	return NewCommitmentBuilder("Upgrade data").
		U64Field("decide_by", uint64(d.DecideBy)).
		U64Field("new_version_first_view", uint64(d.NewVersionFirstView)).
		U64Field("old_version_last_view", uint64(d.OldVersionLastView)).
		VarSizeField("new_version_hash", d.NewVersionHash).
		U16Field("new_version_minor", d.NewVersion.Minor).
		U16Field("new_version_major", d.NewVersion.Major).
		U16Field("old_version_minor", d.OldVersion.Minor).
		U16Field("old_version_major", d.OldVersion.Major).
		Finalize()
}

// UpgradingIn reports whether the view falls in the gap between the last view
// of the old version and the first view of the new one.
func (d UpgradeProposalData) UpgradingIn(view View) bool {
	return view > d.OldVersionLastView && view < d.NewVersionFirstView
}
