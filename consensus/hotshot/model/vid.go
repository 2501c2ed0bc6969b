package model

import (
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// VidDisperseShare is one recipient's share of a dispersed payload. Epoch is
// the epoch of the block; TargetEpoch the epoch whose stake table the
// dispersal was computed for. The two differ only for the second dispersal of
// an epoch transition block.
type VidDisperseShare struct {
	ViewNumber        View
	PayloadCommitment VidCommitment
	Share             []byte
	ShareIndex        uint32
	ShardHashes       []Commitment
	DataShards        uint32
	PayloadSize       uint64
	RecipientKey      signature.PublicKey
	Epoch             Epoch
	TargetEpoch       Epoch
}

func (s *VidDisperseShare) View() View { return s.ViewNumber }

func (s *VidDisperseShare) DataEpoch() Epoch { return s.Epoch }

// IsNextEpochShare reports whether the share belongs to the dispersal for
// the next epoch's committee.
func (s *VidDisperseShare) IsNextEpochShare() bool { return s.Epoch != s.TargetEpoch }

// SignVidShare signs the payload commitment of the share, as the leader does
// for every share it disperses.
func SignVidShare(s *VidDisperseShare, sk *signature.PrivateKey) (*SignedVidShare, error) {
	sig, err := signature.Sign(sk, signature.VidShareTag, s.PayloadCommitment[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign vid share for view %d: %w", s.ViewNumber, err)
	}
	return &SignedVidShare{Data: s, Signature: sig}, nil
}

// VerifyVidShareSignature checks the sender's signature over the share's
// payload commitment.
func VerifyVidShareSignature(p *SignedVidShare, sender signature.PublicKey) error {
	if err := signature.Verify(sender, signature.VidShareTag, p.Data.PayloadCommitment[:], p.Signature); err != nil {
		return fmt.Errorf("invalid vid share signature for view %d: %w", p.Data.ViewNumber, err)
	}
	return nil
}
