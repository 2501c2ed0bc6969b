// Package quorumproposal proposes blocks in the views this node leads. A
// leader proposes once its payload and VID dispersal are ready and it holds
// a justification for the view: a QC of the previous view together with the
// proposal it certifies, a timeout certificate, or a view-sync finalize
// certificate.
//
// The task also installs formed QCs as high QC. Inside an epoch transition a
// QC is only installed together with the next epoch QC of the same leaf.
package quorumproposal

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/onflow/hotshot/module"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
)

const taskKind = "quorum_proposal"

// DefaultViewTimeout is the view timeout assumed when none is configured.
const DefaultViewTimeout = 10 * time.Second

// upgradeCertificateMargin is how many views past the latest proposed view a
// formed upgrade certificate's deadline must leave for it to be kept.
const upgradeCertificateMargin = 3

// Memberships resolves the committees of an epoch.
type Memberships interface {
	MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
	StakeTableForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
}

var _ Memberships = (*committees.EpochMembershipCoordinator)(nil)

// Config holds the leader's identity and timing parameters.
type Config struct {
	PublicKey   signature.PublicKey
	PrivateKey  *signature.PrivateKey
	EpochHeight uint64
	// ViewTimeout defaults to DefaultViewTimeout. A leader waits half of it
	// for the high QCs of the replicas before proposing.
	ViewTimeout time.Duration
}

// receivedHighQC is the highest valid QC replicas sent to this leader.
type receivedHighQC struct {
	qc   *model.QuorumCertificate2
	next *model.NextEpochQuorumCertificate2
}

// Task runs one dependency task per view this node leads.
type Task struct {
	*component.ComponentManager
	log         zerolog.Logger
	config      Config
	consensus   *state.OuterConsensus
	memberships Memberships
	storage     hotshot.Storage
	lock        *model.UpgradeLock
	builder     HeaderBuilder
	metrics     module.HotshotMetrics
	sub         *events.Subscription
	publisher   events.Publisher

	tasks *dependency.Tasks

	mu                 sync.Mutex
	latestProposedView model.View
	highestReceived    *receivedHighQC
	// formed next epoch QCs, read by proposal handlers
	formedNextEpochQCs *certCache[*model.NextEpochQuorumCertificate2]

	// owned by the event loop
	curEpoch          model.Epoch
	formedQCs         *certCache[*model.QuorumCertificate2]
	formedUpgradeCert *model.UpgradeCertificate
}

// NewTask creates the task. Events are read from sub, which the caller
// subscribes before any certificates are published.
func NewTask(
	log zerolog.Logger,
	config Config,
	consensus *state.OuterConsensus,
	memberships Memberships,
	storage hotshot.Storage,
	lock *model.UpgradeLock,
	builder HeaderBuilder,
	metrics module.HotshotMetrics,
	sub *events.Subscription,
	publisher events.Publisher,
) (*Task, error) {
	if config.PrivateKey == nil {
		return nil, model.NewConfigurationErrorf("quorum proposal task needs a private key")
	}
	if config.PublicKey.IsZero() {
		config.PublicKey = config.PrivateKey.PublicKey()
	}
	if config.ViewTimeout <= 0 {
		config.ViewTimeout = DefaultViewTimeout
	}
	c, release := consensus.Read()
	curEpoch := c.CurEpoch()
	release()

	t := &Task{
		log:                log.With().Str("component", "quorum_proposal").Logger(),
		config:             config,
		consensus:          consensus,
		memberships:        memberships,
		storage:            storage,
		lock:               lock,
		builder:            builder,
		metrics:            metrics,
		sub:                sub,
		publisher:          publisher,
		tasks:              dependency.NewTasks(),
		curEpoch:           curEpoch,
		formedQCs:          newCertCache[*model.QuorumCertificate2](),
		formedNextEpochQCs: newCertCache[*model.NextEpochQuorumCertificate2](),
	}
	t.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(t.processEvents).
		Build()
	return t, nil
}

func (t *Task) processEvents(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
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
	case events.UpgradeCertificateFormed:
		t.handleUpgradeCertificate(e.Cert)

	case events.Qc2Formed:
		if e.TC != nil {
			view := e.TC.View().Next()
			t.createTaskIfNew(ctx, view, e.TC.Data.Epoch, e)
			return
		}
		t.formedQCs.put(e.QC.View(), e.QC)
		t.checkEqcAndStore(ctx, e.QC.View())
		t.createTaskIfNew(ctx, e.QC.View().Next(), e.QC.Data.Epoch, e)

	case events.NextEpochQc2Formed:
		t.handleNextEpochQC(ctx, e.QC)

	case events.ExtendedQc2Formed:
		t.log.Debug().Uint64("view", uint64(e.QC.View())).Msg("extended QC formed")

	case events.SendPayloadCommitmentAndMetadata:
		t.createTaskIfNew(ctx, e.ViewNumber, e.Epoch, e)

	case events.ViewSyncFinalizeCertificateRecv:
		t.handleViewSyncCertificate(ctx, e)

	case events.QuorumProposalPreliminarilyValidated:
		p := e.Proposal.Data
		t.createTaskIfNew(ctx, p.View().Next(), p.Epoch, e)

	case events.VidDisperseSend:
		t.createTaskIfNew(ctx, e.ViewNumber, t.curEpoch, e)

	case events.HighQcRecv:
		t.handleHighQC(ctx, e)

	case events.QuorumProposalSend:
		view := e.Proposal.Data.View()
		if !t.UpdateLatestProposedView(view) {
			t.log.Debug().Uint64("view", uint64(view)).Msg("proposal sent for an old view")
		}

	case events.ViewChange:
		if e.Epoch > t.curEpoch {
			t.curEpoch = e.Epoch
		}
		t.cancelled(t.tasks.CancelBelow(e.View.Prev()))
		// certificates up to the decided view can't pair into a transition QC anymore
		c, release := t.consensus.Read()
		decided := c.LastDecidedView()
		release()
		t.pruneBelow(decided + 1)

	case events.Timeout:
		t.cancelled(t.tasks.CancelBelow(e.View.Prev()))
	}
}

// handleUpgradeCertificate keeps a formed upgrade certificate for the next
// proposals if its deadline leaves time to decide it.
func (t *Task) handleUpgradeCertificate(cert *model.UpgradeCertificate) {
	latest := t.LatestProposedView()
	log := t.log.With().
		Uint64("decide_by", uint64(cert.Data.DecideBy)).
		Uint64("latest_proposed_view", uint64(latest)).
		Logger()
	if cert.Data.DecideBy < latest+upgradeCertificateMargin {
		log.Debug().Msg("upgrade certificate formed too late, not proposing it")
		return
	}
	log.Info().Str("new_version", cert.Data.NewVersion.String()).Msg("upgrade certificate formed")
	t.formedUpgradeCert = cert
}

func (t *Task) handleViewSyncCertificate(ctx context.Context, e events.ViewSyncFinalizeCertificateRecv) {
	if err := t.validateViewSyncCertificate(ctx, e.Cert); err != nil {
		t.log.Warn().
			Err(err).
			Uint64("view", uint64(e.Cert.View())).
			Uint64("epoch", uint64(e.Cert.Data.Epoch)).
			Msg("dropping invalid view sync finalize certificate")
		return
	}
	t.createTaskIfNew(ctx, e.Cert.View(), e.Cert.Data.Epoch, e)
}

// validateViewSyncCertificate checks the certificate against the stake
// table of the epoch it claims.
func (t *Task) validateViewSyncCertificate(ctx context.Context, cert *model.ViewSyncFinalizeCertificate2) error {
	m, err := t.memberships.StakeTableForEpoch(ctx, cert.Data.Epoch)
	if err != nil {
		return fmt.Errorf("no stake table for view sync certificate: %w", err)
	}
	return cert.IsValidCert(m.StakeTable(), m.SuccessThreshold(), t.lock)
}

func (t *Task) handleNextEpochQC(ctx context.Context, qc *model.NextEpochQuorumCertificate2) {
	c, release := t.consensus.Read()
	current := c.NextEpochHighQC()
	release()
	if current != nil && qc.View() <= current.View() {
		t.log.Debug().
			Uint64("view", uint64(qc.View())).
			Uint64("next_epoch_high_qc_view", uint64(current.View())).
			Msg("next epoch QC is not newer than the next epoch high QC")
		return
	}
	t.mu.Lock()
	t.formedNextEpochQCs.put(qc.View(), qc)
	t.mu.Unlock()
	t.checkEqcAndStore(ctx, qc.View())
}

// handleHighQC records the highest valid QC replicas sent to this leader.
func (t *Task) handleHighQC(ctx context.Context, e events.HighQcRecv) {
	log := t.log.With().
		Uint64("view", uint64(e.QC.View())).
		Str("sender", e.Sender.String()).
		Logger()
	if err := t.validateHighQC(ctx, e.QC, e.NextEpochQC); err != nil {
		log.Warn().Err(err).Msg("dropping invalid high QC")
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.highestReceived == nil || e.QC.View() > t.highestReceived.qc.View() {
		t.highestReceived = &receivedHighQC{qc: e.QC, next: e.NextEpochQC}
	}
}

// createTaskIfNew starts the proposal task of view unless it exists, the
// view was already proposed in, or this node doesn't lead it. During an
// epoch transition a node leading the view in the next epoch proposes too.
func (t *Task) createTaskIfNew(ctx context.Context, view model.View, epoch model.Epoch, trigger events.Event) {
	log := t.log.With().Uint64("view", uint64(view)).Logger()
	start := time.Now()
	if err := t.createTask(ctx, view, epoch, trigger, start); err != nil {
		switch {
		case errors.Is(err, model.ErrNotLeader), errors.Is(err, model.ErrViewAlreadyProposed), errors.Is(err, dependency.ErrTaskExists):
			log.Trace().Err(err).Msg("not creating proposal task")
		default:
			log.Warn().Err(err).Msg("could not create proposal task")
		}
	}
}

// createTask starts the proposal task of view.
//
// Expected error returns during normal operations:
//   - model.ErrViewAlreadyProposed if view is not newer than the latest proposed view
//   - dependency.ErrTaskExists if the task of view runs already
//   - model.ErrNotLeader if this node leads view in neither epoch
//   - membership errors if the committee of epoch can't be resolved
func (t *Task) createTask(ctx context.Context, view model.View, epoch model.Epoch, trigger events.Event, start time.Time) error {
	if view <= t.LatestProposedView() {
		return model.ErrViewAlreadyProposed
	}
	if t.tasks.Contains(view) {
		return dependency.ErrTaskExists
	}
	leads, err := t.leads(ctx, view, epoch)
	if err != nil {
		return err
	}
	if !leads {
		return model.ErrNotLeader
	}

	pc := proposalContext{
		start:             start,
		formedUpgradeCert: t.formedUpgradeCert,
	}
	task := dependency.NewTask(t.dependencies(ctx, view, trigger), func(depCtx context.Context, evs []events.Event) {
		t.propose(depCtx, view, pc, evs)
	})
	if err := t.tasks.Add(view, task); err != nil {
		task.Cancel()
		return err
	}
	task.Start(ctx)
	return nil
}

func (t *Task) leads(ctx context.Context, view model.View, epoch model.Epoch) (bool, error) {
	m, err := t.memberships.MembershipForEpoch(ctx, epoch)
	if err != nil {
		return false, err
	}
	leader, err := m.Leader(view)
	if err != nil {
		return false, err
	}
	if leader == t.config.PublicKey {
		return true, nil
	}

	c, release := t.consensus.Read()
	inTransition := c.IsHighQCForEpochTransition()
	release()
	if !epoch.IsSome() || !inTransition {
		return false, nil
	}
	next, err := m.NextEpoch(ctx)
	if err != nil {
		return false, err
	}
	leader, err = next.Leader(view)
	if err != nil {
		return false, err
	}
	return leader == t.config.PublicKey, nil
}

// LatestProposedView returns the newest view this node proposed in.
func (t *Task) LatestProposedView() model.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestProposedView
}

// UpdateLatestProposedView moves the latest proposed view forward to view
// and cancels the proposal tasks up to it. It reports false, and does
// nothing, unless view is newer.
func (t *Task) UpdateLatestProposedView(view model.View) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if view <= t.latestProposedView {
		return false
	}
	t.cancelled(t.tasks.CancelRange(t.latestProposedView, view))
	t.latestProposedView = view
	t.metrics.SetProposedView(uint64(view))
	return true
}

func (t *Task) cancelled(n int) {
	for i := 0; i < n; i++ {
		t.metrics.CountDependencyTaskCancelled(taskKind)
	}
}

// isCancelled reports whether err comes from a cancelled dependency task.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, dependency.ErrCancelled)
}
