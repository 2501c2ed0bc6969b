package common

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// Certificate is the printed form of any certificate.
type Certificate struct {
	View           model.View `json:"view"`
	VoteCommitment string     `json:"vote_commitment"`
	Signers        int        `json:"signers"`
}

func NewCertificate(view model.View, commitment model.Commitment, sigs *signature.QuorumSignature) *Certificate {
	c := &Certificate{
		View:           view,
		VoteCommitment: commitment.String(),
	}
	if sigs != nil {
		c.Signers = sigs.Signers.Count()
	}
	return c
}

type Leaf struct {
	View              model.View   `json:"view"`
	Height            uint64       `json:"height"`
	Commitment        string       `json:"commitment"`
	ParentCommitment  string       `json:"parent_commitment"`
	PayloadCommitment string       `json:"payload_commitment"`
	Justify           *Certificate `json:"justify_qc"`
}

func NewLeaf(leaf *model.Leaf) *Leaf {
	if leaf == nil {
		return nil
	}
	l := &Leaf{
		View:              leaf.View(),
		Height:            leaf.Height(),
		Commitment:        leaf.Commit().String(),
		ParentCommitment:  leaf.ParentCommitment.String(),
		PayloadCommitment: leaf.PayloadCommitment().String(),
	}
	if leaf.Justify != nil {
		l.Justify = NewCertificate(leaf.Justify.ViewNumber, leaf.Justify.VoteCommitment, leaf.Justify.Signatures)
	}
	return l
}

type Proposal struct {
	View      model.View   `json:"view"`
	Epoch     model.Epoch  `json:"epoch"`
	Height    uint64       `json:"height"`
	Leaf      string       `json:"leaf_commitment"`
	Payload   string       `json:"payload_commitment"`
	Justify   *Certificate `json:"justify_qc"`
	NextEpoch *Certificate `json:"next_epoch_justify_qc,omitempty"`
	Upgrade   bool         `json:"upgrade_certificate"`
}

func NewProposal(p *model.SignedQuorumProposal) *Proposal {
	data := p.Data
	out := &Proposal{
		View:    data.ViewNumber,
		Epoch:   data.Epoch,
		Height:  data.BlockHeader.BlockNumber,
		Leaf:    model.LeafFromProposal(data).Commit().String(),
		Payload: data.BlockHeader.PayloadCommitment.String(),
		Upgrade: data.UpgradeCertificate != nil,
	}
	if data.JustifyQC != nil {
		out.Justify = NewCertificate(data.JustifyQC.ViewNumber, data.JustifyQC.VoteCommitment, data.JustifyQC.Signatures)
	}
	if data.NextEpochJustifyQC != nil {
		out.NextEpoch = NewCertificate(data.NextEpochJustifyQC.ViewNumber, data.NextEpochJustifyQC.VoteCommitment, data.NextEpochJustifyQC.Signatures)
	}
	return out
}

// PrettyPrint writes v as indented JSON.
func PrettyPrint(w io.Writer, v interface{}) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode %T: %w", v, err)
	}
	_, err = fmt.Fprintln(w, string(bytes))
	return err
}
