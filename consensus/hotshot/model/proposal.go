package model

import (
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// ViewChangeEvidence2 justifies a proposal whose justify QC is not for the
// previous view: either a timeout certificate or a view-sync finalize
// certificate for the previous view. Exactly one is set.
type ViewChangeEvidence2 struct {
	Timeout  *TimeoutCertificate2
	ViewSync *ViewSyncFinalizeCertificate2
}

func (e *ViewChangeEvidence2) View() View {
	if e.Timeout != nil {
		return e.Timeout.ViewNumber
	}
	return e.ViewSync.ViewNumber
}

// IsValidForView reports whether the evidence justifies proposing in view.
func (e *ViewChangeEvidence2) IsValidForView(view View) bool {
	if e.Timeout != nil {
		return e.Timeout.Data.View+1 == view
	}
	if e.ViewSync != nil {
		return e.ViewSync.ViewNumber == view
	}
	return false
}

// QuorumProposal2 is a leader's proposal of a block for its view.
type QuorumProposal2 struct {
	BlockHeader        BlockHeader
	ViewNumber         View
	Epoch              Epoch
	JustifyQC          *QuorumCertificate2
	NextEpochJustifyQC *NextEpochQuorumCertificate2
	UpgradeCertificate *UpgradeCertificate
	ViewChangeEvidence *ViewChangeEvidence2
	NextDrbResult      *DrbResult
	StateCert          *LightClientStateUpdateCertificate
}

func (p *QuorumProposal2) View() View { return p.ViewNumber }

func (p *QuorumProposal2) DataEpoch() Epoch { return p.Epoch }

// Proposal is a message signed by its sender.
type Proposal[T any] struct {
	Data      T
	Signature signature.Signature
}

// DaProposal2 is the payload a leader sends the DA committee of its view.
// InTransition is set while the leader's high QC is at or past the epoch
// root, when the payload is also dispersed to the next epoch's committee.
type DaProposal2 struct {
	Payload      []byte
	Metadata     []byte
	ViewNumber   View
	Epoch        Epoch
	InTransition bool
}

func (p *DaProposal2) View() View { return p.ViewNumber }

func (p *DaProposal2) DataEpoch() Epoch { return p.Epoch }

// PayloadHash identifies the proposed payload.
func (p *DaProposal2) PayloadHash() Commitment {
	return NewCommitmentBuilder("DA payload").
		VarSizeField("payload", p.Payload).
		Finalize()
}

type (
	SignedQuorumProposal = Proposal[*QuorumProposal2]
	SignedVidShare       = Proposal[*VidDisperseShare]
	SignedDaProposal     = Proposal[*DaProposal2]
)

// SignDaProposal signs the hash of the proposed payload.
func SignDaProposal(p *DaProposal2, sk *signature.PrivateKey) (*SignedDaProposal, error) {
	hash := p.PayloadHash()
	sig, err := signature.Sign(sk, signature.DaProposalTag, hash[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign DA proposal for view %d: %w", p.ViewNumber, err)
	}
	return &SignedDaProposal{Data: p, Signature: sig}, nil
}

// VerifyDaProposal checks that the leader signed the proposed payload.
func VerifyDaProposal(p *SignedDaProposal, leader signature.PublicKey) error {
	hash := p.Data.PayloadHash()
	if err := signature.Verify(leader, signature.DaProposalTag, hash[:], p.Signature); err != nil {
		return fmt.Errorf("invalid DA proposal signature for view %d: %w", p.Data.ViewNumber, err)
	}
	return nil
}

// SignQuorumProposal signs the commitment of the proposed leaf.
func SignQuorumProposal(p *QuorumProposal2, sk *signature.PrivateKey) (*SignedQuorumProposal, error) {
	commit := LeafFromProposal(p).Commit()
	sig, err := signature.Sign(sk, signature.ProposalTag, commit[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign proposal for view %d: %w", p.ViewNumber, err)
	}
	return &SignedQuorumProposal{Data: p, Signature: sig}, nil
}

// VerifyQuorumProposal checks that the leader signed the proposed leaf.
func VerifyQuorumProposal(p *SignedQuorumProposal, leader signature.PublicKey) error {
	commit := LeafFromProposal(p.Data).Commit()
	if err := signature.Verify(leader, signature.ProposalTag, commit[:], p.Signature); err != nil {
		return fmt.Errorf("invalid proposal signature for view %d: %w", p.Data.ViewNumber, err)
	}
	return nil
}
