package voteaggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/module"
)

// Memberships resolves the committee of an epoch, catching up on it if needed.
type Memberships interface {
	MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
}

var _ Memberships = (*committees.EpochMembershipCoordinator)(nil)

// Committee selects the stake table and thresholds the votes of one kind
// count against, given the membership of the vote's epoch.
type Committee func(ctx context.Context, m *committees.EpochMembership) (model.StakeTable, model.Thresholds, error)

// QuorumCommittee is the epoch's quorum stake table.
func QuorumCommittee(_ context.Context, m *committees.EpochMembership) (model.StakeTable, model.Thresholds, error) {
	return m.StakeTable(), m, nil
}

// DaCommittee is the epoch's data availability committee.
func DaCommittee(_ context.Context, m *committees.EpochMembership) (model.StakeTable, model.Thresholds, error) {
	return m.DaStakeTable(), m.DaThresholds(), nil
}

// NextEpochCommittee is the quorum stake table of the epoch after the vote's.
func NextEpochCommittee(ctx context.Context, m *committees.EpochMembership) (model.StakeTable, model.Thresholds, error) {
	next, err := m.NextEpochStakeTable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not resolve stake table of epoch %d: %w", m.Epoch().Next(), err)
	}
	return next.StakeTable(), next, nil
}

// Config describes one kind of vote.
type Config[D model.VoteData, T model.Threshold] struct {
	// Kind names the votes in logs and metrics.
	Kind      string
	Committee Committee
	// EpochOf returns the epoch whose membership the vote is checked against.
	// Defaults to the epoch of the vote data.
	EpochOf func(vote *model.SimpleVote[D]) model.Epoch
	// OnCertificate receives every formed certificate, exactly once.
	OnCertificate func(cert *model.SimpleCertificate[D, T])
}

// Aggregator collects the votes of one kind per view and epoch, and forms a
// certificate for each view at most once. Safe for concurrent use.
type Aggregator[D model.VoteData, T model.Threshold] struct {
	log         zerolog.Logger
	config      Config[D, T]
	lock        *model.UpgradeLock
	memberships Memberships
	metrics     module.VoteAggregationMetrics
	collectors  *collectors[*voteCollector[D, T]]
}

func NewAggregator[D model.VoteData, T model.Threshold](
	log zerolog.Logger,
	lock *model.UpgradeLock,
	memberships Memberships,
	metrics module.VoteAggregationMetrics,
	config Config[D, T],
) (*Aggregator[D, T], error) {
	if config.Kind == "" || config.Committee == nil || config.OnCertificate == nil {
		return nil, model.NewConfigurationErrorf("vote aggregator needs a kind, a committee and a certificate consumer")
	}
	if config.EpochOf == nil {
		config.EpochOf = dataEpoch[D]
	}
	return &Aggregator[D, T]{
		log:         log.With().Str("vote_kind", config.Kind).Logger(),
		config:      config,
		lock:        lock,
		memberships: memberships,
		metrics:     metrics,
		collectors:  newCollectors[*voteCollector[D, T]](),
	}, nil
}

func dataEpoch[D model.VoteData](vote *model.SimpleVote[D]) model.Epoch {
	if e, ok := any(vote.Data).(model.HasEpoch); ok {
		return e.DataEpoch()
	}
	return model.NoEpoch
}

// AddVote verifies the vote and adds it to the collector of its view. When
// the vote completes a certificate, the certificate is handed to
// OnCertificate before AddVote returns. AddVote may block while the
// membership of the vote's epoch is caught up on.
//
// Expected error returns during normal operations:
//   - model.InvalidVoteError if the signature is invalid or the signer has no stake
//   - ErrPrunedView if the vote's view was already pruned
//   - model.UnsupportedVersionError if no version can be resolved for the vote's view
//   - the wrapped membership error if the committee of the vote's epoch can't be resolved
func (a *Aggregator[D, T]) AddVote(ctx context.Context, vote *model.SimpleVote[D]) error {
	start := time.Now()
	defer func() { a.metrics.VoteProcessingDuration(time.Since(start)) }()

	key := collectorKey{view: vote.ViewNumber, epoch: a.config.EpochOf(vote)}
	collector, created, err := a.collectors.getOrCreate(key, func() (*voteCollector[D, T], error) {
		return a.newCollector(ctx, key)
	})
	if err != nil {
		return fmt.Errorf("could not get %s collector for view %d: %w", a.config.Kind, key.view, err)
	}
	if created {
		a.log.Debug().
			Uint64("view", uint64(key.view)).
			Uint64("epoch", uint64(key.epoch)).
			Msg("vote collector created")
	}

	cert, err := collector.addVote(vote)
	if err != nil {
		if model.IsInvalidVoteError(err) {
			a.metrics.VoteRejected(a.config.Kind)
		}
		return err
	}
	a.metrics.VoteReceived(a.config.Kind)
	if cert == nil {
		return nil
	}

	a.metrics.CertificateFormed(a.config.Kind)
	a.log.Info().
		Uint64("view", uint64(cert.ViewNumber)).
		Uint64("epoch", uint64(key.epoch)).
		Hex("vote_commitment", cert.VoteCommitment[:]).
		Int("signers", cert.Signatures.Signers.Count()).
		Msg("certificate formed")
	a.config.OnCertificate(cert)
	return nil
}

// PruneUpToView drops the collectors of views below view. Later votes for
// those views are rejected with ErrPrunedView.
func (a *Aggregator[D, T]) PruneUpToView(view model.View) {
	a.collectors.pruneUpToView(view)
}

func (a *Aggregator[D, T]) newCollector(ctx context.Context, key collectorKey) (*voteCollector[D, T], error) {
	membership, err := a.memberships.MembershipForEpoch(ctx, key.epoch)
	if err != nil {
		return nil, fmt.Errorf("could not resolve membership of epoch %d: %w", key.epoch, err)
	}
	table, thresholds, err := a.config.Committee(ctx, membership)
	if err != nil {
		return nil, err
	}
	var t T
	return &voteCollector[D, T]{
		view: key.view,
		acc:  NewAccumulator[D, T](a.lock, table, t.Of(thresholds)),
	}, nil
}

// voteCollector accumulates the votes of one view. Signatures are verified
// concurrently; only adding a verified vote is serialized.
type voteCollector[D model.VoteData, T model.Threshold] struct {
	view model.View
	done atomic.Bool

	mu  sync.Mutex
	acc *Accumulator[D, T]
}

func (c *voteCollector[D, T]) addVote(vote *model.SimpleVote[D]) (*model.SimpleCertificate[D, T], error) {
	if vote.ViewNumber != c.view {
		return nil, model.NewVoteForIncompatibleViewError(vote.ViewNumber, c.view)
	}
	if c.done.Load() {
		return nil, nil
	}
	verified, err := c.acc.verify(vote)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	cert, err := c.acc.add(verified)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("could not aggregate votes of view %d: %w", c.view, err)
	}
	if cert == nil || !c.done.CAS(false, true) {
		return nil, nil
	}
	return cert, nil
}
