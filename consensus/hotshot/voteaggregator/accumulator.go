package voteaggregator

import (
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// tally is the progress of the votes for one vote commitment.
type tally[D model.VoteData] struct {
	data    D
	weight  uint64
	signers map[signature.PublicKey]struct{}
	bitmap  signature.SignerBitmap
	sigs    []signature.Signature
}

// verifiedVote is a vote whose signature and signer were checked against the
// accumulator's stake table.
type verifiedVote[D model.VoteData] struct {
	vote   *model.SimpleVote[D]
	commit model.Commitment
	entry  model.StakeTableEntry
	index  int
}

// Accumulator aggregates votes of one view into a certificate once the
// signers reach the threshold in the stake table. Votes are tallied per vote
// commitment, so votes for different data never count towards the same
// certificate. A signer counts once per commitment.
//
// Accumulator is not safe for concurrent use. verify is, and may run in
// parallel to add.
type Accumulator[D model.VoteData, T model.Threshold] struct {
	lock      *model.UpgradeLock
	table     model.StakeTable
	threshold uint64
	tallies   map[model.Commitment]*tally[D]
	formed    bool
}

// NewAccumulator returns an accumulator for votes checked against table,
// forming a certificate at threshold stake.
func NewAccumulator[D model.VoteData, T model.Threshold](lock *model.UpgradeLock, table model.StakeTable, threshold uint64) *Accumulator[D, T] {
	return &Accumulator[D, T]{
		lock:      lock,
		table:     table,
		threshold: threshold,
		tallies:   make(map[model.Commitment]*tally[D]),
	}
}

// Accumulate adds the vote. It returns the certificate for the vote's data
// when this vote lifts the signers' stake to the threshold, and nil
// otherwise. Once a certificate was formed, further votes are ignored. A
// repeated vote of a signer is ignored as well.
//
// Expected error returns during normal operations:
//   - model.InvalidVoteError if the signature is invalid or the signer has no stake
//   - model.UnsupportedVersionError if no version can be resolved for the vote's view
func (a *Accumulator[D, T]) Accumulate(vote *model.SimpleVote[D]) (*model.SimpleCertificate[D, T], error) {
	v, err := a.verify(vote)
	if err != nil {
		return nil, err
	}
	return a.add(v)
}

// Weight returns the stake that voted for the commitment.
func (a *Accumulator[D, T]) Weight(commit model.Commitment) uint64 {
	t, ok := a.tallies[commit]
	if !ok {
		return 0
	}
	return t.weight
}

func (a *Accumulator[D, T]) verify(vote *model.SimpleVote[D]) (*verifiedVote[D], error) {
	entry, index, ok := a.table.Lookup(vote.Signer)
	if !ok {
		return nil, model.NewInvalidVoteErrorf(vote.ViewNumber, vote.Signer, "%w",
			model.NewInvalidSignerErrorf("signer %s has no stake", vote.Signer))
	}
	commit, err := vote.DataCommitment(a.lock)
	if err != nil {
		return nil, err
	}
	if err := signature.Verify(vote.Signer, signature.VoteTag, commit[:], vote.Signature); err != nil {
		return nil, model.NewInvalidVoteErrorf(vote.ViewNumber, vote.Signer, "signature check failed: %w", err)
	}
	return &verifiedVote[D]{vote: vote, commit: commit, entry: entry, index: index}, nil
}

func (a *Accumulator[D, T]) add(v *verifiedVote[D]) (*model.SimpleCertificate[D, T], error) {
	if a.formed {
		return nil, nil
	}
	t, ok := a.tallies[v.commit]
	if !ok {
		t = &tally[D]{
			data:    v.vote.Data,
			signers: make(map[signature.PublicKey]struct{}),
			bitmap:  signature.NewSignerBitmap(len(a.table)),
		}
		a.tallies[v.commit] = t
	}
	if _, dup := t.signers[v.vote.Signer]; dup {
		return nil, nil
	}
	t.signers[v.vote.Signer] = struct{}{}
	t.bitmap.Set(v.index)
	t.sigs = append(t.sigs, v.vote.Signature)
	t.weight += v.entry.Stake

	if t.weight < a.threshold {
		return nil, nil
	}
	pp, err := signature.NewPublicParameter(a.table.WeightedKeys(), a.threshold)
	if err != nil {
		return nil, fmt.Errorf("could not derive public parameter: %w", err)
	}
	qs, err := signature.Assemble(pp, t.bitmap, t.sigs)
	if err != nil {
		return nil, fmt.Errorf("could not assemble signatures of %d signers: %w", len(t.sigs), err)
	}
	a.formed = true
	return model.CreateSignedCertificate[D, T](v.commit, t.data, qs, v.vote.ViewNumber), nil
}
