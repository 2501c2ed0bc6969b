// Package quorumproposalrecv validates the quorum proposals a replica
// receives. A valid proposal is recorded as an undecided leaf, its justify
// QC becomes a high QC candidate, and the vote and proposal tasks are told
// about it.
package quorumproposalrecv

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
	"github.com/onflow/hotshot/module"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
)

var (
	// ErrStaleProposal is returned for proposals of views at or below the
	// last decided view.
	ErrStaleProposal = errors.New("proposal for a decided view")

	// ErrMissingParent is returned when the replica doesn't hold the leaf the
	// proposal's justify QC certifies.
	ErrMissingParent = errors.New("parent leaf unknown")

	// ErrUnsafeProposal is returned for proposals that neither extend the
	// locked leaf nor carry a QC newer than it.
	ErrUnsafeProposal = errors.New("proposal neither extends the locked leaf nor justifies a newer view")
)

// Memberships resolves the committees of an epoch.
type Memberships interface {
	MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
	StakeTableForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
}

var _ Memberships = (*committees.EpochMembershipCoordinator)(nil)

type Config struct {
	EpochHeight uint64
}

// Task validates one received proposal at a time, in the order the bus
// delivers them.
type Task struct {
	*component.ComponentManager
	log         zerolog.Logger
	config      Config
	consensus   *state.OuterConsensus
	memberships Memberships
	storage     hotshot.Storage
	lock        *model.UpgradeLock
	metrics     module.HotshotMetrics
	sub         *events.Subscription
	publisher   events.Publisher
}

func NewTask(
	log zerolog.Logger,
	config Config,
	consensus *state.OuterConsensus,
	memberships Memberships,
	storage hotshot.Storage,
	lock *model.UpgradeLock,
	metrics module.HotshotMetrics,
	sub *events.Subscription,
	publisher events.Publisher,
) *Task {
	t := &Task{
		log:         log.With().Str("component", "quorum_proposal_recv").Logger(),
		config:      config,
		consensus:   consensus,
		memberships: memberships,
		storage:     storage,
		lock:        lock,
		metrics:     metrics,
		sub:         sub,
		publisher:   publisher,
	}
	t.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(t.processEvents).
		Build()
	return t
}

func (t *Task) processEvents(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		ev, err := t.sub.Next(ctx)
		if err != nil {
			return
		}
		if e, ok := ev.(events.QuorumProposalRecv); ok {
			t.handleProposal(ctx, e)
		}
	}
}

func (t *Task) handleProposal(ctx context.Context, e events.QuorumProposalRecv) {
	p := e.Proposal.Data
	log := t.log.With().
		Uint64("view", uint64(p.View())).
		Uint64("justify_qc_view", uint64(p.JustifyQC.View())).
		Str("sender", e.Sender.String()).
		Logger()

	if err := t.Validate(ctx, e.Proposal); err != nil {
		if errors.Is(err, ErrStaleProposal) {
			log.Debug().Err(err).Msg("ignoring proposal")
			return
		}
		log.Warn().Err(err).Msg("dropping invalid proposal")
		return
	}
	t.publisher.Publish(events.QuorumProposalPreliminarilyValidated{Proposal: e.Proposal})

	parent, err := t.record(ctx, e.Proposal)
	if err != nil {
		log.Warn().Err(err).Msg("not accepting proposal")
		return
	}
	t.publisher.Publish(events.QuorumProposalValidated{Proposal: e.Proposal, ParentLeaf: parent})
}

// Validate checks everything about the proposal that doesn't depend on the
// replica holding its parent: the leader's signature, the epoch of the
// block, the justify QC with its next epoch QC during an epoch transition,
// the view change evidence and the upgrade certificate.
//
// Expected error returns during normal operations:
//   - ErrStaleProposal if the view is decided already
//   - model.InvalidCertificateError if a certificate doesn't verify
//   - model.InconsistentCommitmentError if the justify QCs certify different leaves
//   - model.UnsupportedVersionError if the view has no known protocol version
//   - membership errors if a committee can't be resolved
//   - any other error if the proposal is malformed
func (t *Task) Validate(ctx context.Context, signed *model.SignedQuorumProposal) error {
	p := signed.Data
	view := p.View()
	if p.JustifyQC == nil {
		return fmt.Errorf("proposal for view %d has no justify QC", view)
	}

	c, release := t.consensus.Read()
	decided := c.LastDecidedView()
	release()
	if view <= decided {
		return fmt.Errorf("view %d, decided %d: %w", view, decided, ErrStaleProposal)
	}
	if p.JustifyQC.View() >= view {
		return fmt.Errorf("justify QC of view %d for proposal of view %d", p.JustifyQC.View(), view)
	}

	version, err := t.lock.Version(view)
	if err != nil {
		return err
	}
	epochs := version.AtLeast(model.EpochVersion)
	eh := t.config.EpochHeight
	if want := model.OptionEpochFromBlockNumber(epochs, p.BlockHeader.BlockNumber, eh); p.Epoch != want {
		return fmt.Errorf("proposal of block %d claims epoch %v, expected %v", p.BlockHeader.BlockNumber, p.Epoch, want)
	}

	m, err := t.memberships.MembershipForEpoch(ctx, p.Epoch)
	if err != nil {
		return err
	}
	leader, err := m.Leader(view)
	if err != nil {
		return err
	}
	if err := model.VerifyQuorumProposal(signed, leader); err != nil {
		return err
	}

	if err := t.validateJustify(ctx, p, epochs); err != nil {
		return err
	}

	if p.JustifyQC.View().Next() != view {
		evidence := p.ViewChangeEvidence
		if evidence == nil || !evidence.IsValidForView(view) {
			return fmt.Errorf("justify QC of view %d without view change evidence for view %d", p.JustifyQC.View(), view)
		}
		if err := t.validateEvidence(ctx, evidence); err != nil {
			return err
		}
	}

	if p.UpgradeCertificate != nil {
		upgrade, err := t.memberships.StakeTableForEpoch(ctx, p.Epoch)
		if err != nil {
			return err
		}
		if err := model.ValidateUpgradeCertificate(p.UpgradeCertificate, upgrade.StakeTable(), upgrade, t.lock); err != nil {
			return err
		}
	}
	return nil
}

// validateJustify checks the justify QC against the committee of the epoch
// it certifies. A QC over an epoch transition block must come with the next
// epoch's QC over the same leaf.
func (t *Task) validateJustify(ctx context.Context, p *model.QuorumProposal2, epochs bool) error {
	qc := p.JustifyQC
	m, err := t.memberships.StakeTableForEpoch(ctx, qc.Data.Epoch)
	if err != nil {
		return err
	}
	if err := qc.IsValidCert(m.StakeTable(), m.SuccessThreshold(), t.lock); err != nil {
		return err
	}

	bn, ok := qc.Data.Block()
	if !epochs || !ok || !model.IsEpochTransition(bn, t.config.EpochHeight) {
		return nil
	}
	next := p.NextEpochJustifyQC
	if next == nil {
		return fmt.Errorf("justify QC of transition block %d without next epoch QC", bn)
	}
	if next.Data.LeafCommit != qc.Data.LeafCommit {
		return model.NewInconsistentCommitmentErrorf(qc.View(), "justify QC and next epoch justify QC certify different leaves")
	}
	nm, err := m.NextEpochStakeTable(ctx)
	if err != nil {
		return err
	}
	return next.IsValidCert(nm.StakeTable(), nm.SuccessThreshold(), t.lock)
}

func (t *Task) validateEvidence(ctx context.Context, evidence *model.ViewChangeEvidence2) error {
	if tc := evidence.Timeout; tc != nil {
		m, err := t.memberships.StakeTableForEpoch(ctx, tc.Data.Epoch)
		if err != nil {
			return err
		}
		return tc.IsValidCert(m.StakeTable(), m.SuccessThreshold(), t.lock)
	}
	cert := evidence.ViewSync
	m, err := t.memberships.StakeTableForEpoch(ctx, cert.Data.Epoch)
	if err != nil {
		return err
	}
	return cert.IsValidCert(m.StakeTable(), m.SuccessThreshold(), t.lock)
}

// record checks the proposal against the replica's chain and stores its
// leaf. It returns the parent leaf.
//
// Expected error returns during normal operations:
//   - ErrMissingParent if the parent leaf isn't held
//   - ErrUnsafeProposal if the proposal fails both the safety and the liveness rule
//   - model.ErrUpgradeNotExtended if the leaf drops a live upgrade certificate
func (t *Task) record(ctx context.Context, signed *model.SignedQuorumProposal) (*model.Leaf, error) {
	p := signed.Data
	view := p.View()
	leaf := model.LeafFromProposal(p)

	c, release := t.consensus.Write()
	parent, ok := c.SavedLeaf(leaf.ParentCommitment)
	if !ok {
		release()
		return nil, fmt.Errorf("justify QC of view %d: %w", p.JustifyQC.View(), ErrMissingParent)
	}
	if err := leaf.ExtendsUpgrade(parent, t.lock.DecidedUpgradeCertificate()); err != nil {
		release()
		return nil, err
	}
	if err := extendsLocked(c, leaf); err != nil {
		release()
		return nil, err
	}
	if err := c.UpdateLeaf(leaf, nil, nil); err != nil && !errors.Is(err, state.ErrAlreadyExists) {
		release()
		return nil, err
	}
	viewErr := c.UpdateView(view)
	if p.Epoch.IsSome() {
		// only moves forward
		_ = c.UpdateEpoch(p.Epoch)
	}
	release()

	t.publisher.Publish(events.ValidatedStateUpdated{View: view, Leaf: leaf})
	if viewErr == nil {
		t.publisher.Publish(events.ViewChange{View: view, Epoch: p.Epoch})
	}
	t.installJustify(ctx, p)
	return parent, nil
}

// extendsLocked accepts the leaf if its justify QC is newer than the locked
// view, or if its chain reaches the locked leaf.
func extendsLocked(c *state.Consensus, leaf *model.Leaf) error {
	locked := c.LockedView()
	if leaf.Justify.View() > locked {
		return nil
	}
	extends := false
	err := c.VisitLeafAncestors(leaf.Justify.View(), state.StopAfter(locked), false, func(l *model.Leaf, _ state.ValidatedState, _ state.StateDelta) bool {
		if l.View() <= locked {
			extends = l.View() == locked
			return false
		}
		return true
	})
	if err != nil || !extends {
		return fmt.Errorf("locked view %d: %w", locked, ErrUnsafeProposal)
	}
	return nil
}

// installJustify makes the proposal's justify QC the high QC if it's newer.
// A QC over an epoch transition block is only installed together with its
// next epoch QC.
func (t *Task) installJustify(ctx context.Context, p *model.QuorumProposal2) {
	qc := p.JustifyQC
	if qc.View() == model.GenesisView {
		return
	}
	log := t.log.With().Uint64("view", uint64(qc.View())).Logger()
	eh := t.config.EpochHeight
	bn, ok := qc.Data.Block()
	transition := ok && t.lock.EpochsEnabled(qc.View()) && model.IsEpochTransition(bn, eh)
	persist := !transition || !model.IsMiddleTransitionBlock(bn, eh)

	if transition {
		next := p.NextEpochJustifyQC
		c, release := t.consensus.Write()
		err := c.UpdateNextEpochHighQC(next)
		release()
		switch {
		case errors.Is(err, state.ErrNotNewer):
		case err != nil:
			log.Warn().Err(err).Msg("could not install next epoch high QC")
			return
		default:
			t.publisher.Publish(events.HighQcUpdated{NextEpochQC: next})
			if persist {
				if err := t.storage.UpdateNextEpochHighQC(ctx, next); err != nil {
					log.Error().Err(err).Msg("could not persist next epoch high QC")
				}
			}
		}
	}

	c, release := t.consensus.Write()
	err := c.UpdateHighQC(qc)
	release()
	if errors.Is(err, state.ErrNotNewer) {
		log.Trace().Err(err).Msg("justify QC is not newer than the high QC")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("could not install high QC")
		return
	}
	t.metrics.SetHighQCView(uint64(qc.View()))
	t.publisher.Publish(events.HighQcUpdated{QC: qc})
	if !persist {
		return
	}
	if err := t.storage.UpdateHighQC(ctx, qc); err != nil {
		log.Error().Err(err).Msg("could not persist high QC")
	}
}
