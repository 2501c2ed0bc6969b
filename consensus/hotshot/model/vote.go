package model

import (
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// VoteCommitment is the message a vote signs: the data commitment bound to
// the view. From the epoch version on it also binds the protocol version, so
// a vote can't be replayed across an upgrade boundary.
func VoteCommitment(data VoteData, view View, version Version) Commitment {
	b := NewCommitmentBuilder("Vote").
		Field("data", data.Commit()).
		U64Field("view", uint64(view))
	if version.AtLeast(EpochVersion) {
		b.U16Field("version_major", version.Major).U16Field("version_minor", version.Minor)
	}
	return b.Finalize()
}

// VersionedVoteCommitment resolves the version of the view and computes the
// vote commitment under it.
func VersionedVoteCommitment(data VoteData, view View, lock *UpgradeLock) (Commitment, error) {
	version, err := lock.Version(view)
	if err != nil {
		return ZeroCommitment, fmt.Errorf("could not resolve version for view %d: %w", view, err)
	}
	return VoteCommitment(data, view, version), nil
}

// SimpleVote is a signed statement over vote data for a view.
type SimpleVote[D VoteData] struct {
	Signer     signature.PublicKey
	Signature  signature.Signature
	Data       D
	ViewNumber View
}

func (v *SimpleVote[D]) View() View { return v.ViewNumber }

// DataCommitment returns the commitment the vote signs.
func (v *SimpleVote[D]) DataCommitment(lock *UpgradeLock) (Commitment, error) {
	return VersionedVoteCommitment(v.Data, v.ViewNumber, lock)
}

// Verify checks the vote's signature against its own signer key. It does not
// check stake table membership.
func (v *SimpleVote[D]) Verify(lock *UpgradeLock) error {
	commit, err := v.DataCommitment(lock)
	if err != nil {
		return err
	}
	if err := signature.Verify(v.Signer, signature.VoteTag, commit[:], v.Signature); err != nil {
		return NewInvalidVoteErrorf(v.ViewNumber, v.Signer, "signature check failed: %w", err)
	}
	return nil
}

// CreateSignedVote signs data for the view under the protocol version active
// at that view.
//
// Expected error returns during normal operations:
//   - UnsupportedVersionError if no version can be resolved for the view
func CreateSignedVote[D VoteData](data D, view View, sk *signature.PrivateKey, lock *UpgradeLock) (*SimpleVote[D], error) {
	commit, err := VersionedVoteCommitment(data, view, lock)
	if err != nil {
		return nil, err
	}
	sig, err := signature.Sign(sk, signature.VoteTag, commit[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign vote for view %d: %w", view, err)
	}
	return &SimpleVote[D]{
		Signer:     sk.PublicKey(),
		Signature:  sig,
		Data:       data,
		ViewNumber: view,
	}, nil
}

type (
	QuorumVote             = SimpleVote[QuorumData]
	QuorumVote2            = SimpleVote[QuorumData2]
	NextEpochQuorumVote2   = SimpleVote[NextEpochQuorumData2]
	DaVote                 = SimpleVote[DaData]
	DaVote2                = SimpleVote[DaData2]
	TimeoutVote            = SimpleVote[TimeoutData]
	TimeoutVote2           = SimpleVote[TimeoutData2]
	ViewSyncPreCommitVote  = SimpleVote[ViewSyncPreCommitData]
	ViewSyncPreCommitVote2 = SimpleVote[ViewSyncPreCommitData2]
	ViewSyncCommitVote     = SimpleVote[ViewSyncCommitData]
	ViewSyncCommitVote2    = SimpleVote[ViewSyncCommitData2]
	ViewSyncFinalizeVote   = SimpleVote[ViewSyncFinalizeData]
	ViewSyncFinalizeVote2  = SimpleVote[ViewSyncFinalizeData2]
	UpgradeVote            = SimpleVote[UpgradeProposalData]
)
