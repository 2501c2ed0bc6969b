package voteaggregator

import (
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

type stateTally struct {
	weight     uint64
	signers    map[signature.PublicKey]struct{}
	signatures []model.StateSignature
}

// StateAccumulator collects light client state update votes of one epoch
// root into a state certificate. Votes are tallied per attested
// (light client state, next stake table state) pair. Not safe for concurrent
// use.
type StateAccumulator struct {
	epoch     model.Epoch
	table     model.StakeTable
	threshold uint64
	tallies   map[model.Commitment]*stateTally
	formed    bool
}

func NewStateAccumulator(epoch model.Epoch, table model.StakeTable, threshold uint64) *StateAccumulator {
	return &StateAccumulator{
		epoch:     epoch,
		table:     table,
		threshold: threshold,
		tallies:   make(map[model.Commitment]*stateTally),
	}
}

// Accumulate adds the vote and returns the certificate once the signers of
// its state reach the threshold. Repeated votes and votes after the
// certificate was formed are ignored.
//
// Expected error returns during normal operations:
//   - model.InvalidVoteError if the signature is invalid or the signer has no stake
func (a *StateAccumulator) Accumulate(vote *model.LightClientStateUpdateVote) (*model.LightClientStateUpdateCertificate, error) {
	entry, _, ok := a.table.Lookup(vote.Signer)
	if !ok {
		return nil, model.NewInvalidVoteErrorf(vote.View(), vote.Signer, "%w",
			model.NewInvalidSignerErrorf("signer %s has no stake in epoch %d", vote.Signer, a.epoch))
	}
	if err := vote.Verify(); err != nil {
		return nil, err
	}
	if a.formed {
		return nil, nil
	}
	key := model.LightClientStateMessage(vote.LightClientState, vote.NextStakeTableState)
	t, ok := a.tallies[key]
	if !ok {
		t = &stateTally{signers: make(map[signature.PublicKey]struct{})}
		a.tallies[key] = t
	}
	if _, dup := t.signers[vote.Signer]; dup {
		return nil, nil
	}
	t.signers[vote.Signer] = struct{}{}
	t.signatures = append(t.signatures, model.StateSignature{Key: vote.Signer, Signature: vote.Signature})
	t.weight += entry.Stake
	if t.weight < a.threshold {
		return nil, nil
	}
	a.formed = true
	return &model.LightClientStateUpdateCertificate{
		Epoch:               vote.Epoch,
		LightClientState:    vote.LightClientState,
		NextStakeTableState: vote.NextStakeTableState,
		Signatures:          append([]model.StateSignature(nil), t.signatures...),
	}, nil
}
