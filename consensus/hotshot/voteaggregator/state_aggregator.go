package voteaggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/module"
)

const stateVoteKind = "light_client_state"

// StateAggregator collects the light client state update votes sent with
// the quorum votes of epoch roots. A state certificate needs a quorum of the
// vote's epoch.
type StateAggregator struct {
	log           zerolog.Logger
	memberships   Memberships
	metrics       module.VoteAggregationMetrics
	onCertificate func(*model.LightClientStateUpdateCertificate)
	collectors    *collectors[*stateCollector]
}

func NewStateAggregator(
	log zerolog.Logger,
	memberships Memberships,
	metrics module.VoteAggregationMetrics,
	onCertificate func(*model.LightClientStateUpdateCertificate),
) *StateAggregator {
	return &StateAggregator{
		log:           log.With().Str("vote_kind", stateVoteKind).Logger(),
		memberships:   memberships,
		metrics:       metrics,
		onCertificate: onCertificate,
		collectors:    newCollectors[*stateCollector](),
	}
}

// AddVote adds a state vote, handing a completed certificate to the
// consumer before returning.
//
// Expected error returns during normal operations:
//   - model.InvalidVoteError if the signature is invalid or the signer has no stake
//   - ErrPrunedView if the vote's view was already pruned
//   - the wrapped membership error if the committee of the vote's epoch can't be resolved
func (a *StateAggregator) AddVote(ctx context.Context, vote *model.LightClientStateUpdateVote) error {
	key := collectorKey{view: vote.View(), epoch: vote.Epoch}
	collector, _, err := a.collectors.getOrCreate(key, func() (*stateCollector, error) {
		membership, err := a.memberships.MembershipForEpoch(ctx, key.epoch)
		if err != nil {
			return nil, fmt.Errorf("could not resolve membership of epoch %d: %w", key.epoch, err)
		}
		return &stateCollector{acc: NewStateAccumulator(key.epoch, membership.StakeTable(), membership.SuccessThreshold())}, nil
	})
	if err != nil {
		return fmt.Errorf("could not get state collector for view %d: %w", key.view, err)
	}

	cert, err := collector.addVote(vote)
	if err != nil {
		if model.IsInvalidVoteError(err) {
			a.metrics.VoteRejected(stateVoteKind)
		}
		return err
	}
	a.metrics.VoteReceived(stateVoteKind)
	if cert == nil {
		return nil
	}
	a.metrics.CertificateFormed(stateVoteKind)
	a.log.Info().
		Uint64("view", uint64(cert.View())).
		Uint64("epoch", uint64(cert.Epoch)).
		Int("signers", len(cert.Signatures)).
		Msg("light client state certificate formed")
	a.onCertificate(cert)
	return nil
}

func (a *StateAggregator) PruneUpToView(view model.View) {
	a.collectors.pruneUpToView(view)
}

type stateCollector struct {
	done atomic.Bool

	mu  sync.Mutex
	acc *StateAccumulator
}

func (c *stateCollector) addVote(vote *model.LightClientStateUpdateVote) (*model.LightClientStateUpdateCertificate, error) {
	if c.done.Load() {
		return nil, nil
	}
	c.mu.Lock()
	cert, err := c.acc.Accumulate(vote)
	c.mu.Unlock()
	if err != nil || cert == nil || !c.done.CAS(false, true) {
		return nil, err
	}
	return cert, nil
}
