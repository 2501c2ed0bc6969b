package voteaggregator

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/module"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
)

// DefaultWorkers is the default number of concurrent vote verifications.
const DefaultWorkers = 4

// Task feeds the votes received on the event bus into one aggregator per vote
// kind, and publishes the certificates they form. Collectors of views older
// than the newest view minus one are pruned on every view change.
type Task struct {
	*component.ComponentManager
	log         zerolog.Logger
	publicKey   signature.PublicKey
	lock        *model.UpgradeLock
	epochHeight uint64
	sub         *events.Subscription
	publisher   events.Publisher
	pool        *workerpool.WorkerPool
	curEpoch    *atomic.Uint64

	quorum    *Aggregator[model.QuorumData2, model.SuccessThreshold]
	nextEpoch *Aggregator[model.NextEpochQuorumData2, model.SuccessThreshold]
	da        *Aggregator[model.DaData2, model.SuccessThreshold]
	timeout   *Aggregator[model.TimeoutData2, model.SuccessThreshold]
	preCommit *Aggregator[model.ViewSyncPreCommitData2, model.OneHonestThreshold]
	commit    *Aggregator[model.ViewSyncCommitData2, model.SuccessThreshold]
	finalize  *Aggregator[model.ViewSyncFinalizeData2, model.SuccessThreshold]
	upgrade   *Aggregator[model.UpgradeProposalData, model.UpgradeThreshold]
	states    *StateAggregator

	rootsMu sync.Mutex
	// epoch root certificates waiting for their QC or state certificate
	roots map[model.View]*model.EpochRootQuorumCertificate
}

// TaskConfig configures the vote aggregation task.
type TaskConfig struct {
	Workers     int
	EpochHeight uint64
}

// NewTask creates the task. Events are read from sub, which the caller
// subscribes before any votes are published.
func NewTask(
	log zerolog.Logger,
	publicKey signature.PublicKey,
	lock *model.UpgradeLock,
	memberships Memberships,
	metrics module.VoteAggregationMetrics,
	sub *events.Subscription,
	publisher events.Publisher,
	config TaskConfig,
) (*Task, error) {
	if config.Workers <= 0 {
		return nil, model.NewConfigurationErrorf("vote aggregation needs at least one worker, got %d", config.Workers)
	}
	t := &Task{
		log:         log.With().Str("component", "vote_aggregator").Logger(),
		publicKey:   publicKey,
		lock:        lock,
		epochHeight: config.EpochHeight,
		sub:         sub,
		publisher:   publisher,
		pool:        workerpool.New(config.Workers),
		curEpoch:    atomic.NewUint64(0),
		roots:       make(map[model.View]*model.EpochRootQuorumCertificate),
	}

	var err error
	t.quorum, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.QuorumData2, model.SuccessThreshold]{
		Kind:          "quorum",
		Committee:     QuorumCommittee,
		OnCertificate: t.onQuorumCertificate,
	})
	if err != nil {
		return nil, err
	}
	t.nextEpoch, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.NextEpochQuorumData2, model.SuccessThreshold]{
		Kind:      "next_epoch_quorum",
		Committee: NextEpochCommittee,
		OnCertificate: func(qc *model.NextEpochQuorumCertificate2) {
			t.publisher.Publish(events.NextEpochQc2Formed{QC: qc})
		},
	})
	if err != nil {
		return nil, err
	}
	t.da, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.DaData2, model.SuccessThreshold]{
		Kind:      "da",
		Committee: DaCommittee,
		OnCertificate: func(cert *model.DaCertificate2) {
			t.publisher.Publish(events.DacSend{Cert: cert, Sender: t.publicKey})
		},
	})
	if err != nil {
		return nil, err
	}
	t.timeout, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.TimeoutData2, model.SuccessThreshold]{
		Kind:      "timeout",
		Committee: QuorumCommittee,
		OnCertificate: func(tc *model.TimeoutCertificate2) {
			t.publisher.Publish(events.Qc2Formed{TC: tc})
		},
	})
	if err != nil {
		return nil, err
	}
	t.preCommit, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.ViewSyncPreCommitData2, model.OneHonestThreshold]{
		Kind:      "view_sync_pre_commit",
		Committee: QuorumCommittee,
		OnCertificate: func(cert *model.ViewSyncPreCommitCertificate2) {
			t.publisher.Publish(events.ViewSyncPreCommitCertificateSend{Cert: cert, Sender: t.publicKey})
		},
	})
	if err != nil {
		return nil, err
	}
	t.commit, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.ViewSyncCommitData2, model.SuccessThreshold]{
		Kind:      "view_sync_commit",
		Committee: QuorumCommittee,
		OnCertificate: func(cert *model.ViewSyncCommitCertificate2) {
			t.publisher.Publish(events.ViewSyncCommitCertificateSend{Cert: cert, Sender: t.publicKey})
		},
	})
	if err != nil {
		return nil, err
	}
	t.finalize, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.ViewSyncFinalizeData2, model.SuccessThreshold]{
		Kind:      "view_sync_finalize",
		Committee: QuorumCommittee,
		OnCertificate: func(cert *model.ViewSyncFinalizeCertificate2) {
			t.publisher.Publish(events.ViewSyncFinalizeCertificateSend{Cert: cert, Sender: t.publicKey})
		},
	})
	if err != nil {
		return nil, err
	}
	t.upgrade, err = NewAggregator(t.log, lock, memberships, metrics, Config[model.UpgradeProposalData, model.UpgradeThreshold]{
		Kind:      "upgrade",
		Committee: QuorumCommittee,
		// upgrade data carries no epoch; the current committee votes on it
		EpochOf: func(vote *model.UpgradeVote) model.Epoch {
			if !t.lock.EpochsEnabled(vote.ViewNumber) {
				return model.NoEpoch
			}
			return model.Epoch(t.curEpoch.Load())
		},
		OnCertificate: func(cert *model.UpgradeCertificate) {
			t.publisher.Publish(events.UpgradeCertificateFormed{Cert: cert})
		},
	})
	if err != nil {
		return nil, err
	}
	t.states = NewStateAggregator(t.log, memberships, metrics, t.onStateCertificate)

	t.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(t.processEvents).
		Build()
	return t, nil
}

func (t *Task) processEvents(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer t.pool.StopWait()
	ready()
	for {
		ev, err := t.sub.Next(ctx)
		if err != nil {
			// the bus closed or we are shutting down
			return
		}
		t.handle(ctx, ev)
	}
}

func (t *Task) handle(ctx context.Context, ev events.Event) {
	switch e := ev.(type) {
	case events.QuorumVoteRecv:
		t.addQuorumVote(ctx, e.Vote)
	case events.EpochRootQuorumVoteRecv:
		t.addEpochRootVote(ctx, e.Vote)
	case events.DaVoteRecv:
		t.submit("da", e.Vote.ViewNumber, func() error { return t.da.AddVote(ctx, e.Vote) })
	case events.TimeoutVoteRecv:
		t.submit("timeout", e.Vote.ViewNumber, func() error { return t.timeout.AddVote(ctx, e.Vote) })
	case events.ViewSyncPreCommitVoteRecv:
		t.submit("view_sync_pre_commit", e.Vote.ViewNumber, func() error { return t.preCommit.AddVote(ctx, e.Vote) })
	case events.ViewSyncCommitVoteRecv:
		t.submit("view_sync_commit", e.Vote.ViewNumber, func() error { return t.commit.AddVote(ctx, e.Vote) })
	case events.ViewSyncFinalizeVoteRecv:
		t.submit("view_sync_finalize", e.Vote.ViewNumber, func() error { return t.finalize.AddVote(ctx, e.Vote) })
	case events.UpgradeVoteRecv:
		t.submit("upgrade", e.Vote.ViewNumber, func() error { return t.upgrade.AddVote(ctx, e.Vote) })
	case events.ViewChange:
		if e.Epoch > model.Epoch(t.curEpoch.Load()) {
			t.curEpoch.Store(uint64(e.Epoch))
		}
		if e.View > 0 {
			t.PruneUpToView(e.View - 1)
		}
	}
}

// addQuorumVote counts the vote in the current epoch, and votes for epoch
// transition blocks in the next epoch as well.
func (t *Task) addQuorumVote(ctx context.Context, vote *model.QuorumVote2) {
	t.submit("quorum", vote.ViewNumber, func() error { return t.quorum.AddVote(ctx, vote) })

	bn, ok := vote.Data.Block()
	if !ok || !t.lock.EpochsEnabled(vote.ViewNumber) || !model.IsEpochTransition(bn, t.epochHeight) {
		return
	}
	extended := model.ToNextEpochVote(vote)
	t.submit("next_epoch_quorum", vote.ViewNumber, func() error {
		err := t.nextEpoch.AddVote(ctx, extended)
		if model.IsInvalidSignerError(err) {
			// not every voter of the current epoch has stake in the next one
			return nil
		}
		return err
	})
}

func (t *Task) addEpochRootVote(ctx context.Context, vote *model.EpochRootQuorumVote) {
	view := vote.Vote.ViewNumber
	t.rootsMu.Lock()
	if _, ok := t.roots[view]; !ok {
		t.roots[view] = &model.EpochRootQuorumCertificate{}
	}
	t.rootsMu.Unlock()

	t.addQuorumVote(ctx, vote.Vote)
	t.submit(stateVoteKind, view, func() error { return t.states.AddVote(ctx, vote.StateVote) })
}

func (t *Task) onQuorumCertificate(qc *model.QuorumCertificate2) {
	t.publisher.Publish(events.Qc2Formed{QC: qc})
	t.completeRoot(qc.ViewNumber, func(root *model.EpochRootQuorumCertificate) { root.QC = qc })
}

func (t *Task) onStateCertificate(cert *model.LightClientStateUpdateCertificate) {
	t.publisher.Publish(events.LightClientStateCertFormed{Cert: cert})
	t.completeRoot(cert.View(), func(root *model.EpochRootQuorumCertificate) { root.StateCert = cert })
}

// completeRoot publishes the epoch root certificate of the view once both
// its parts are formed.
func (t *Task) completeRoot(view model.View, set func(*model.EpochRootQuorumCertificate)) {
	t.rootsMu.Lock()
	root, ok := t.roots[view]
	if !ok {
		t.rootsMu.Unlock()
		return
	}
	set(root)
	complete := root.QC != nil && root.StateCert != nil
	if complete {
		delete(t.roots, view)
	}
	t.rootsMu.Unlock()

	if !complete {
		return
	}
	if !model.CheckStateCertCorrespondence(root.QC, root.StateCert, t.epochHeight) {
		t.log.Warn().
			Uint64("view", uint64(view)).
			Uint64("state_cert_epoch", uint64(root.StateCert.Epoch)).
			Msg("light client state certificate doesn't match the epoch root QC")
		return
	}
	t.publisher.Publish(events.EpochRootQcFormed{Cert: root})
}

// PruneUpToView drops all collectors of views below view.
func (t *Task) PruneUpToView(view model.View) {
	t.quorum.PruneUpToView(view)
	t.nextEpoch.PruneUpToView(view)
	t.da.PruneUpToView(view)
	t.timeout.PruneUpToView(view)
	t.preCommit.PruneUpToView(view)
	t.commit.PruneUpToView(view)
	t.finalize.PruneUpToView(view)
	t.upgrade.PruneUpToView(view)
	t.states.PruneUpToView(view)

	t.rootsMu.Lock()
	for v := range t.roots {
		if v < view {
			delete(t.roots, v)
		}
	}
	t.rootsMu.Unlock()
}

// submit verifies and accumulates a vote on the worker pool. Vote failures
// concern a single peer's vote and are logged, never thrown.
func (t *Task) submit(kind string, view model.View, add func() error) {
	t.pool.Submit(func() {
		err := add()
		if err == nil {
			return
		}
		log := t.log.With().Str("vote_kind", kind).Uint64("view", uint64(view)).Logger()
		switch {
		case errors.Is(err, ErrPrunedView):
			log.Debug().Err(err).Msg("dropping vote for pruned view")
		case errors.Is(err, context.Canceled):
			log.Debug().Err(err).Msg("vote processing cancelled")
		case model.IsInvalidVoteError(err):
			log.Warn().Err(err).Msg("dropping invalid vote")
		default:
			log.Warn().Err(err).Msg("could not process vote")
		}
	})
}
