package model

import (
	"errors"
	"fmt"
)

// BlockHeader is the part of a block consensus reads. The payload itself is
// distributed through VID and never travels with the header.
type BlockHeader struct {
	BlockNumber       uint64
	PayloadCommitment VidCommitment
	BuilderCommitment Commitment
	Metadata          []byte
	Timestamp         uint64
}

func (h BlockHeader) Commit() Commitment {
	return NewCommitmentBuilder("BLOCK_HEADER").
		U64Field("block_number", h.BlockNumber).
		Field("payload_commitment", h.PayloadCommitment).
		Field("builder_commitment", h.BuilderCommitment).
		VarSizeField("metadata", h.Metadata).
		U64Field("timestamp", h.Timestamp).
		Finalize()
}

// LightClientState returns the light client state after this header at the view.
func (h BlockHeader) LightClientState(view View) LightClientState {
	return LightClientState{
		ViewNumber:    uint64(view),
		BlockHeight:   h.BlockNumber,
		BlockCommRoot: h.Commit(),
	}
}

// Leaf is a block header with its position in the chain. Leaves link to
// their parent via ParentCommitment, which equals the leaf commitment the
// justify QC certifies.
type Leaf struct {
	ViewNumber         View
	Justify            *QuorumCertificate2
	NextEpochJustify   *NextEpochQuorumCertificate2
	ParentCommitment   Commitment
	BlockHeader        BlockHeader
	UpgradeCertificate *UpgradeCertificate
	ViewChangeEvidence *ViewChangeEvidence2
	NextDrbResult      *DrbResult
	WithEpoch          bool
}

func (l *Leaf) View() View { return l.ViewNumber }

func (l *Leaf) Height() uint64 { return l.BlockHeader.BlockNumber }

func (l *Leaf) PayloadCommitment() VidCommitment { return l.BlockHeader.PayloadCommitment }

// Epoch returns the epoch the leaf belongs to, NoEpoch before epochs.
func (l *Leaf) Epoch(epochHeight uint64) Epoch {
	return OptionEpochFromBlockNumber(l.WithEpoch, l.Height(), epochHeight)
}

// Commit identifies the leaf. Fields introduced with epochs only enter the
// commitment when set.
func (l *Leaf) Commit() Commitment {
	b := NewCommitmentBuilder("leaf commitment").
		U64Field("view number", uint64(l.ViewNumber)).
		U64Field("block number", l.Height()).
		Field("parent leaf commitment", l.ParentCommitment).
		Field("block header", l.BlockHeader.Commit()).
		Field("justify qc", l.Justify.Commit())
	if l.UpgradeCertificate != nil {
		b.Field("upgrade certificate", l.UpgradeCertificate.Commit())
	}
	if l.NextEpochJustify != nil {
		b.Field("next epoch justify qc", l.NextEpochJustify.Commit())
	}
	if l.NextDrbResult != nil {
		b.FixedSizeField("next drb result", l.NextDrbResult[:])
	}
	return b.Finalize()
}

// ErrUpgradeNotExtended is returned when a leaf drops or replaces an upgrade
// certificate its parent carried while that upgrade is still live.
var ErrUpgradeNotExtended = errors.New("leaf does not extend its parent's upgrade certificate")

// ExtendsUpgrade checks that the leaf carries its parent's upgrade
// certificate for as long as the upgrade is live.
func (l *Leaf) ExtendsUpgrade(parent *Leaf, decided *UpgradeCertificate) error {
	parentCert := parent.UpgradeCertificate
	switch {
	case parentCert == nil:
		return nil
	case l.UpgradeCertificate == nil:
		if l.ViewNumber > parentCert.Data.NewVersionFirstView {
			return nil
		}
		if l.ViewNumber > parentCert.Data.DecideBy && decided == nil {
			return nil
		}
		return fmt.Errorf("missing certificate still live at view %d: %w", l.ViewNumber, ErrUpgradeNotExtended)
	case l.UpgradeCertificate.Commit() != parentCert.Commit():
		return fmt.Errorf("certificate differs from the parent's: %w", ErrUpgradeNotExtended)
	default:
		return nil
	}
}

// nullQuorumCertificate justifies the genesis leaf itself.
func nullQuorumCertificate() *QuorumCertificate2 {
	data := QuorumData2{LeafCommit: ZeroCommitment}
	return &QuorumCertificate2{
		Data:           data,
		VoteCommitment: VoteCommitment(data, GenesisView, BaseVersion),
		ViewNumber:     GenesisView,
	}
}

// GenesisLeaf returns the leaf of view 0 carrying the genesis header.
func GenesisLeaf(header BlockHeader, withEpoch bool) *Leaf {
	return &Leaf{
		ViewNumber:  GenesisView,
		Justify:     nullQuorumCertificate(),
		BlockHeader: header,
		WithEpoch:   withEpoch,
	}
}

// LeafFromProposal derives the leaf a quorum proposal proposes.
func LeafFromProposal(p *QuorumProposal2) *Leaf {
	return &Leaf{
		ViewNumber:         p.ViewNumber,
		Justify:            p.JustifyQC,
		NextEpochJustify:   p.NextEpochJustifyQC,
		ParentCommitment:   p.JustifyQC.Data.LeafCommit,
		BlockHeader:        p.BlockHeader,
		UpgradeCertificate: p.UpgradeCertificate,
		ViewChangeEvidence: p.ViewChangeEvidence,
		NextDrbResult:      p.NextDrbResult,
		WithEpoch:          p.Epoch.IsSome(),
	}
}
