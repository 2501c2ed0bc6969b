package model

import (
	"errors"
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// SimpleCertificate is the aggregate of votes over the same data and view. T
// selects the threshold the signers must reach; it's part of the type, so a
// pre-commit certificate can never pass for a quorum certificate.
type SimpleCertificate[D VoteData, T Threshold] struct {
	Data           D
	VoteCommitment Commitment
	ViewNumber     View
	// Signatures is nil for genesis certificates.
	Signatures *signature.QuorumSignature
}

// CreateSignedCertificate assembles a certificate without validating it.
func CreateSignedCertificate[D VoteData, T Threshold](voteCommitment Commitment, data D, sig *signature.QuorumSignature, view View) *SimpleCertificate[D, T] {
	return &SimpleCertificate[D, T]{
		Data:           data,
		VoteCommitment: voteCommitment,
		ViewNumber:     view,
		Signatures:     sig,
	}
}

func (c *SimpleCertificate[D, T]) View() View { return c.ViewNumber }

// ThresholdOf returns the stake this certificate type needs in the committee.
func (c *SimpleCertificate[D, T]) ThresholdOf(m Thresholds) uint64 {
	var t T
	return t.Of(m)
}

// DataEpoch returns the epoch of the certified data, or NoEpoch for
// pre-epoch data.
func (c *SimpleCertificate[D, T]) DataEpoch() Epoch {
	if e, ok := any(c.Data).(HasEpoch); ok {
		return e.DataEpoch()
	}
	return NoEpoch
}

// Commit identifies the certificate; it doesn't cover the signatures.
func (c *SimpleCertificate[D, T]) Commit() Commitment {
	var t T
	return NewCommitmentBuilder("Certificate").
		Constant(t.String()).
		Field("data", c.Data.Commit()).
		Field("vote_commitment", c.VoteCommitment).
		U64Field("view", uint64(c.ViewNumber)).
		Finalize()
}

// IsValidCert checks the aggregated signature against the stake table and
// threshold, over the vote commitment recomputed for the certificate's data
// and view under the protocol version of that view. Genesis certificates are
// always valid.
//
// Expected error returns during normal operations:
//   - InvalidCertificateError if the signature check fails, wrapping the cause
//   - UnsupportedVersionError if no version can be resolved for the view
func (c *SimpleCertificate[D, T]) IsValidCert(stakeTable StakeTable, threshold uint64, lock *UpgradeLock) error {
	if c.ViewNumber == GenesisView {
		return nil
	}
	var t T
	commit, err := VersionedVoteCommitment(c.Data, c.ViewNumber, lock)
	if err != nil {
		return err
	}
	pp, err := signature.NewPublicParameter(stakeTable.WeightedKeys(), threshold)
	if err != nil {
		return NewInvalidCertificateErrorf(t.String(), c.ViewNumber, "could not derive public parameter: %w", err)
	}
	if err := signature.Check(pp, signature.VoteTag, commit[:], c.Signatures); err != nil {
		if errors.Is(err, signature.ErrInsufficientWeight) {
			err = NewInsufficientSignaturesErrorf("%w", err)
		}
		return NewInvalidCertificateErrorf(t.String(), c.ViewNumber, "signature check failed: %w", err)
	}
	return nil
}

// Signers lists the keys that contributed to the certificate, resolved
// against the stake table it was formed under.
func (c *SimpleCertificate[D, T]) Signers(stakeTable StakeTable) ([]signature.PublicKey, error) {
	if c.Signatures == nil {
		return nil, nil
	}
	if err := c.Signatures.Signers.Validate(len(stakeTable)); err != nil {
		return nil, fmt.Errorf("signer bitmap doesn't match stake table: %w", err)
	}
	idx := c.Signatures.Signers.Indices()
	keys := make([]signature.PublicKey, 0, len(idx))
	for _, i := range idx {
		keys = append(keys, stakeTable[i].Key)
	}
	return keys, nil
}

type (
	QuorumCertificate             = SimpleCertificate[QuorumData, SuccessThreshold]
	QuorumCertificate2            = SimpleCertificate[QuorumData2, SuccessThreshold]
	NextEpochQuorumCertificate2   = SimpleCertificate[NextEpochQuorumData2, SuccessThreshold]
	DaCertificate                 = SimpleCertificate[DaData, SuccessThreshold]
	DaCertificate2                = SimpleCertificate[DaData2, SuccessThreshold]
	TimeoutCertificate            = SimpleCertificate[TimeoutData, SuccessThreshold]
	TimeoutCertificate2           = SimpleCertificate[TimeoutData2, SuccessThreshold]
	ViewSyncPreCommitCertificate  = SimpleCertificate[ViewSyncPreCommitData, OneHonestThreshold]
	ViewSyncPreCommitCertificate2 = SimpleCertificate[ViewSyncPreCommitData2, OneHonestThreshold]
	ViewSyncCommitCertificate     = SimpleCertificate[ViewSyncCommitData, SuccessThreshold]
	ViewSyncCommitCertificate2    = SimpleCertificate[ViewSyncCommitData2, SuccessThreshold]
	ViewSyncFinalizeCertificate   = SimpleCertificate[ViewSyncFinalizeData, SuccessThreshold]
	ViewSyncFinalizeCertificate2  = SimpleCertificate[ViewSyncFinalizeData2, SuccessThreshold]
	UpgradeCertificate            = SimpleCertificate[UpgradeProposalData, UpgradeThreshold]
)

// GenesisQuorumCertificate justifies the leaf following genesis.
func GenesisQuorumCertificate(genesisLeaf Commitment) *QuorumCertificate2 {
	return &QuorumCertificate2{
		Data:           QuorumData2{LeafCommit: genesisLeaf},
		VoteCommitment: VoteCommitment(QuorumData2{LeafCommit: genesisLeaf}, GenesisView, BaseVersion),
		ViewNumber:     GenesisView,
	}
}
