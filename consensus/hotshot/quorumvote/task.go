// Package quorumvote votes on validated quorum proposals. A replica votes for
// the proposal of a view once it holds the proposal, the DA certificate and
// its own VID share of the view, and applies the decide rule to every
// validated proposal it sees.
package quorumvote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/dependency"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/consensus/hotshot/state"
	"github.com/onflow/hotshot/consensus/hotshot/vid"
	"github.com/onflow/hotshot/module"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
)

const taskKind = "quorum_vote"

// Memberships resolves the committees of an epoch.
type Memberships interface {
	MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
	StakeTableForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
	ComputeDrbFromRoot(ctx context.Context, epoch model.Epoch, root *model.Leaf) (model.DrbResult, error)
	Membership() hotshot.Membership
}

var _ Memberships = (*committees.EpochMembershipCoordinator)(nil)

// Config holds the replica's identity and voting parameters.
type Config struct {
	PublicKey  signature.PublicKey
	PrivateKey *signature.PrivateKey
	// StateKey signs light client state updates. Defaults to PrivateKey.
	StateKey    *signature.PrivateKey
	EpochHeight uint64
	// SecondShareTimeout defaults to DefaultSecondShareTimeout.
	SecondShareTimeout time.Duration
}

type firstEpoch struct {
	view  model.View
	epoch model.Epoch
}

// Task runs one dependency task per view, which completes once the
// validated proposal, the DA certificate and the replica's VID share of the
// view arrived, in any order.
type Task struct {
	*component.ComponentManager
	log         zerolog.Logger
	config      Config
	consensus   *state.OuterConsensus
	memberships Memberships
	storage     hotshot.Storage
	lock        *model.UpgradeLock
	validator   StateValidator
	metrics     module.HotshotMetrics
	sub         *events.Subscription
	publisher   events.Publisher

	tasks *dependency.Tasks
	// DRB computations started by decides
	background sync.WaitGroup

	mu              sync.Mutex
	latestVotedView model.View
	firstEpoch      *firstEpoch
}

// NewTask creates the task. Events are read from sub, which the caller
// subscribes before any proposals are published.
func NewTask(
	log zerolog.Logger,
	config Config,
	consensus *state.OuterConsensus,
	memberships Memberships,
	storage hotshot.Storage,
	lock *model.UpgradeLock,
	validator StateValidator,
	metrics module.HotshotMetrics,
	sub *events.Subscription,
	publisher events.Publisher,
) (*Task, error) {
	if config.PrivateKey == nil {
		return nil, model.NewConfigurationErrorf("quorum vote task needs a private key")
	}
	if config.PublicKey.IsZero() {
		config.PublicKey = config.PrivateKey.PublicKey()
	}
	if config.StateKey == nil {
		config.StateKey = config.PrivateKey
	}
	t := &Task{
		log:         log.With().Str("component", "quorum_vote").Logger(),
		config:      config,
		consensus:   consensus,
		memberships: memberships,
		storage:     storage,
		lock:        lock,
		validator:   validator,
		metrics:     metrics,
		sub:         sub,
		publisher:   publisher,
		tasks:       dependency.NewTasks(),
	}
	t.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(t.processEvents).
		Build()
	return t, nil
}

func (t *Task) processEvents(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer t.background.Wait()
	defer t.tasks.CancelAll()
	ready()
	for {
		ev, err := t.sub.Next(ctx)
		if err != nil {
			return
		}
		t.handle(ctx, ev)
	}
}

func (t *Task) handle(ctx context.Context, ev events.Event) {
	switch e := ev.(type) {
	case events.QuorumProposalValidated:
		t.handleProposal(ctx, e)
	case events.DaCertificateRecv:
		t.handleDaCertificate(ctx, e.Cert)
	case events.VidShareRecv:
		t.handleVidShare(ctx, e.Sender, e.Share)
	case events.Timeout:
		t.cancelled(t.tasks.CancelBelow(e.View.Prev()))
	case events.ViewChange:
		t.UpdateLatestVotedView(e.View.Prev())
		t.cancelled(t.tasks.CancelBelow(e.View.Prev()))
	case events.SetFirstEpoch:
		t.mu.Lock()
		t.firstEpoch = &firstEpoch{view: e.View, epoch: e.Epoch}
		t.mu.Unlock()
	}
}

func (t *Task) handleProposal(ctx context.Context, e events.QuorumProposalValidated) {
	view := e.Proposal.Data.View()
	log := t.log.With().Uint64("view", uint64(view)).Logger()

	if err := t.decide(ctx, e.Proposal); err != nil {
		log.Warn().Err(err).Msg("could not apply decide rule")
	}

	if view <= t.LatestVotedView() {
		log.Debug().Err(model.ErrViewAlreadyVoted).Msg("ignoring proposal")
		return
	}
	t.createTask(ctx, view, &e)
}

func (t *Task) handleDaCertificate(ctx context.Context, cert *model.DaCertificate2) {
	view := cert.View()
	if view <= t.LatestVotedView() {
		return
	}
	log := t.log.With().Uint64("view", uint64(view)).Logger()

	m, err := t.memberships.StakeTableForEpoch(ctx, cert.Data.Epoch)
	if err != nil {
		log.Warn().Err(err).Msg("no DA committee for certificate")
		return
	}
	if err := cert.IsValidCert(m.DaStakeTable(), m.DaSuccessThreshold(), t.lock); err != nil {
		log.Warn().Err(err).Msg("dropping invalid DA certificate")
		return
	}

	c, release := t.consensus.Write()
	c.UpdateSavedDaCerts(view, cert)
	release()

	t.createTask(ctx, view, nil)
	t.publisher.Publish(events.DaCertificateValidated{Cert: cert})
}

func (t *Task) handleVidShare(ctx context.Context, sender signature.PublicKey, share *model.SignedVidShare) {
	view := share.Data.View()
	if view <= t.LatestVotedView() {
		return
	}
	log := t.log.With().
		Uint64("view", uint64(view)).
		Uint64("target_epoch", uint64(share.Data.TargetEpoch)).
		Logger()

	if err := model.VerifyVidShareSignature(share, sender); err != nil {
		log.Warn().Err(err).Msg("dropping vid share")
		return
	}
	m, err := t.memberships.MembershipForEpoch(ctx, share.Data.Epoch)
	if err != nil {
		log.Warn().Err(err).Msg("no membership for vid share")
		return
	}
	leader, err := m.Leader(view)
	if err != nil {
		log.Warn().Err(err).Msg("no leader for vid share")
		return
	}
	if !m.HasDaStake(sender) && sender != leader {
		log.Warn().Str("sender", sender.String()).Msg("vid share from neither the leader nor a DA member")
		return
	}
	if err := vid.VerifyShare(share.Data); err != nil {
		log.Warn().Err(err).Msg("dropping invalid vid share")
		return
	}

	c, release := t.consensus.Write()
	c.UpdateVidShares(view, share)
	release()

	if share.Data.RecipientKey != t.config.PublicKey {
		log.Debug().Msg("vid share for another recipient")
		return
	}
	t.createTask(ctx, view, nil)
	t.publisher.Publish(events.VidShareValidated{Share: share})
}

// createTask starts the vote task of the view unless it exists. A validated
// proposal completes its dependency right away.
func (t *Task) createTask(ctx context.Context, view model.View, proposal *events.QuorumProposalValidated) {
	if t.tasks.Contains(view) {
		return
	}
	proposalDep := dependency.NewEventDependency(t.sub.Clone(), "quorum_proposal_validated", func(ev events.Event) bool {
		e, ok := ev.(events.QuorumProposalValidated)
		return ok && e.Proposal.Data.View() == view
	})
	if proposal != nil {
		proposalDep.MarkCompleted(*proposal)
	}
	dacDep := dependency.NewEventDependency(t.sub.Clone(), "da_certificate_validated", func(ev events.Event) bool {
		e, ok := ev.(events.DaCertificateValidated)
		return ok && e.Cert.View() == view
	})
	vidDep := dependency.NewEventDependency(t.sub.Clone(), "vid_share_validated", func(ev events.Event) bool {
		e, ok := ev.(events.VidShareValidated)
		return ok && e.Share.Data.View() == view
	})

	task := dependency.NewTask(dependency.And(proposalDep, dacDep, vidDep), func(depCtx context.Context, evs []events.Event) {
		t.vote(ctx, depCtx, view, evs)
	})
	if err := t.tasks.Add(view, task); err != nil {
		task.Cancel()
		return
	}
	task.Start(ctx)
}

// LatestVotedView returns the newest view the replica voted in or gave up on.
func (t *Task) LatestVotedView() model.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestVotedView
}

// UpdateLatestVotedView moves the latest voted view forward to view and
// cancels the vote tasks of the views in between. It reports false, and
// does nothing, unless view is newer.
func (t *Task) UpdateLatestVotedView(view model.View) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if view <= t.latestVotedView {
		return false
	}
	t.cancelled(t.tasks.CancelRange(t.latestVotedView, view))
	t.latestVotedView = view
	t.metrics.SetVotedView(uint64(view))
	return true
}

func (t *Task) cancelled(n int) {
	for i := 0; i < n; i++ {
		t.metrics.CountDependencyTaskCancelled(taskKind)
	}
}

func (t *Task) nextViewEpoch(view model.View, epoch model.Epoch) model.Epoch {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstEpoch != nil && t.firstEpoch.view == view {
		return t.firstEpoch.epoch
	}
	return epoch
}

// isCancelled reports whether err comes from a cancelled dependency task.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, dependency.ErrCancelled)
}
