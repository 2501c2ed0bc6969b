package model

import (
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// LightClientState is the state a light client follows: the latest finalized
// view and block height and the root of the block commitment tree.
type LightClientState struct {
	ViewNumber    uint64
	BlockHeight   uint64
	BlockCommRoot Commitment
}

func (s LightClientState) Commit() Commitment {
	return NewCommitmentBuilder("LIGHT_CLIENT_STATE").
		U64Field("view_number", s.ViewNumber).
		U64Field("block_height", s.BlockHeight).
		Field("block_comm_root", s.BlockCommRoot).
		Finalize()
}

// StakeTableState commits to the stake table a light client will verify the
// next epoch's state updates against.
type StakeTableState struct {
	KeyComm    Commitment
	AmountComm Commitment
	Threshold  uint64
}

func (s StakeTableState) Commit() Commitment {
	return NewCommitmentBuilder("STAKE_TABLE_STATE").
		Field("key_comm", s.KeyComm).
		Field("amount_comm", s.AmountComm).
		U64Field("threshold", s.Threshold).
		Finalize()
}

// StakeTableStateOf derives the light client commitment of a stake table
// reaching the given threshold.
func StakeTableStateOf(table StakeTable, threshold uint64) StakeTableState {
	keys := NewCommitmentBuilder("stake table keys")
	amounts := NewCommitmentBuilder("stake table amounts")
	for _, e := range table {
		keys.VarSizeField("key", e.Key.Bytes())
		amounts.U64Field("stake", e.Stake)
	}
	return StakeTableState{
		KeyComm:    keys.Finalize(),
		AmountComm: amounts.Finalize(),
		Threshold:  threshold,
	}
}

// LightClientStateMessage is the message signed by a light client state
// update vote.
func LightClientStateMessage(state LightClientState, next StakeTableState) Commitment {
	return NewCommitmentBuilder("Light client state update").
		Field("light_client_state", state.Commit()).
		Field("next_stake_table_state", next.Commit()).
		Finalize()
}

// LightClientStateUpdateVote is sent alongside the quorum vote for an epoch
// root, attesting the light client state handed over to the next epoch.
type LightClientStateUpdateVote struct {
	Epoch               Epoch
	LightClientState    LightClientState
	NextStakeTableState StakeTableState
	Signer              signature.PublicKey
	Signature           signature.Signature
}

func (v *LightClientStateUpdateVote) View() View { return View(v.LightClientState.ViewNumber) }

// CreateLightClientStateUpdateVote signs the light client state of an epoch root.
func CreateLightClientStateUpdateVote(epoch Epoch, state LightClientState, next StakeTableState, sk *signature.PrivateKey) (*LightClientStateUpdateVote, error) {
	msg := LightClientStateMessage(state, next)
	sig, err := signature.Sign(sk, signature.LightClientStateTag, msg[:])
	if err != nil {
		return nil, fmt.Errorf("could not sign light client state: %w", err)
	}
	return &LightClientStateUpdateVote{
		Epoch:               epoch,
		LightClientState:    state,
		NextStakeTableState: next,
		Signer:              sk.PublicKey(),
		Signature:           sig,
	}, nil
}

func (v *LightClientStateUpdateVote) Verify() error {
	msg := LightClientStateMessage(v.LightClientState, v.NextStakeTableState)
	if err := signature.Verify(v.Signer, signature.LightClientStateTag, msg[:], v.Signature); err != nil {
		return NewInvalidVoteErrorf(v.View(), v.Signer, "light client state signature check failed: %w", err)
	}
	return nil
}

// StateSignature is a single signer's light client state signature. Light
// client state certificates are not aggregated; the light client verifies
// every signature against the stake table commitment.
type StateSignature struct {
	Key       signature.PublicKey
	Signature signature.Signature
}

// LightClientStateUpdateCertificate carries the signatures of enough stake on
// the light client state of an epoch root.
type LightClientStateUpdateCertificate struct {
	Epoch               Epoch
	LightClientState    LightClientState
	NextStakeTableState StakeTableState
	Signatures          []StateSignature
}

func (c *LightClientStateUpdateCertificate) View() View { return View(c.LightClientState.ViewNumber) }

func (c *LightClientStateUpdateCertificate) DataEpoch() Epoch { return c.Epoch }

// GenesisStateCertificate is the state certificate of the genesis epoch.
func GenesisStateCertificate() *LightClientStateUpdateCertificate {
	return &LightClientStateUpdateCertificate{Epoch: 1}
}

// Validate checks every signature and that the signers reach the threshold
// in the stake table.
//
// Expected error returns during normal operations:
//   - InvalidCertificateError if a signature is invalid, a signer unknown or
//     the signers' weight below the threshold
func (c *LightClientStateUpdateCertificate) Validate(stakeTable StakeTable, threshold uint64) error {
	msg := LightClientStateMessage(c.LightClientState, c.NextStakeTableState)
	seen := make(map[signature.PublicKey]struct{}, len(c.Signatures))
	var weight uint64
	for _, s := range c.Signatures {
		if _, dup := seen[s.Key]; dup {
			return NewInvalidCertificateErrorf("light client state", c.View(), "%w", NewDuplicatedSignerErrorf("signer %s signed twice", s.Key))
		}
		seen[s.Key] = struct{}{}
		entry, _, ok := stakeTable.Lookup(s.Key)
		if !ok {
			return NewInvalidCertificateErrorf("light client state", c.View(), "%w", NewInvalidSignerErrorf("signer %s not in stake table", s.Key))
		}
		if err := signature.Verify(s.Key, signature.LightClientStateTag, msg[:], s.Signature); err != nil {
			return NewInvalidCertificateErrorf("light client state", c.View(), "signature of %s: %w", s.Key, err)
		}
		weight += entry.Stake
	}
	if weight < threshold {
		return NewInvalidCertificateErrorf("light client state", c.View(), "%w",
			NewInsufficientSignaturesErrorf("weight %d below threshold %d", weight, threshold))
	}
	return nil
}

// EpochRootQuorumVote is the quorum vote for an epoch root together with the
// light client state update vote.
type EpochRootQuorumVote struct {
	Vote      *QuorumVote2
	StateVote *LightClientStateUpdateVote
}

// EpochRootQuorumCertificate pairs the QC of an epoch root with its light
// client state certificate.
type EpochRootQuorumCertificate struct {
	QC        *QuorumCertificate2
	StateCert *LightClientStateUpdateCertificate
}

func (c *EpochRootQuorumCertificate) View() View { return c.QC.View() }

// CheckStateCertCorrespondence reports whether the state certificate attests
// the epoch root the QC certifies.
func CheckStateCertCorrespondence(qc *QuorumCertificate2, stateCert *LightClientStateUpdateCertificate, epochHeight uint64) bool {
	bn, ok := qc.Data.Block()
	return ok && IsEpochRoot(bn, epochHeight) &&
		qc.DataEpoch() == stateCert.Epoch &&
		qc.ViewNumber == stateCert.View()
}
