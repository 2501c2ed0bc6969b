// Package consensus assembles the consensus tasks of one replica into a
// single component.
package consensus

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/config"
	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/da"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/notifications"
	"github.com/onflow/hotshot/consensus/hotshot/notifications/pubsub"
	"github.com/onflow/hotshot/consensus/hotshot/quorumproposal"
	"github.com/onflow/hotshot/consensus/hotshot/quorumproposalrecv"
	"github.com/onflow/hotshot/consensus/hotshot/quorumvote"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/consensus/hotshot/state"
	"github.com/onflow/hotshot/consensus/hotshot/voteaggregator"
	"github.com/onflow/hotshot/module"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
	"github.com/onflow/hotshot/network/relay"
)

// Metrics is everything the tasks of a participant report.
type Metrics interface {
	module.HotshotMetrics
	module.VoteAggregationMetrics
	module.MembershipMetrics
}

// ParticipantConfig holds what a participant can be configured with beyond
// its node config.
type ParticipantConfig struct {
	validator   quorumvote.StateValidator
	builder     quorumproposal.HeaderBuilder
	anchorState state.ValidatedState
}

type Option func(*ParticipantConfig)

// WithStateValidator sets the validator replicas execute proposed headers
// with. It defaults to quorumvote.HeightValidator.
func WithStateValidator(v quorumvote.StateValidator) Option {
	return func(c *ParticipantConfig) {
		c.validator = v
	}
}

// WithHeaderBuilder sets how leaders build headers. It defaults to
// quorumproposal.NextHeader.
func WithHeaderBuilder(b quorumproposal.HeaderBuilder) Option {
	return func(c *ParticipantConfig) {
		c.builder = b
	}
}

// WithAnchorState sets the application state of the anchor leaf.
func WithAnchorState(s state.ValidatedState) Option {
	return func(c *ParticipantConfig) {
		c.anchorState = s
	}
}

// CreateConsumer distributes notifications to a log consumer and the given
// consumers.
func CreateConsumer(log zerolog.Logger, consumers ...hotshot.Consumer) *pubsub.Distributor {
	dis := pubsub.NewDistributor()
	dis.AddConsumer(notifications.NewLogConsumer(log))
	for _, c := range consumers {
		dis.AddConsumer(c)
	}
	return dis
}

// Participant is one replica: the consensus tasks connected by an event bus,
// with relays to the network and to the notification consumer. Messages
// received from the network are passed in through Deliver.
type Participant struct {
	*component.ComponentManager
	log         zerolog.Logger
	publicKey   signature.PublicKey
	bus         *events.Bus
	consensus   *state.OuterConsensus
	lock        *model.UpgradeLock
	memberships *committees.EpochMembershipCoordinator
	relay       *relay.Relay
	components  []component.Component
}

// NewParticipant restores the consensus state from storage, anchored at
// genesis when nothing was decided yet, and wires the tasks. Nothing runs
// before Start.
func NewParticipant(
	ctx context.Context,
	log zerolog.Logger,
	cfg *config.Config,
	sk *signature.PrivateKey,
	genesis *model.Leaf,
	membership hotshot.Membership,
	catchup hotshot.EpochCatchup,
	storage hotshot.Storage,
	network hotshot.Network,
	payloads da.PayloadSource,
	consumer hotshot.Consumer,
	metrics Metrics,
	opts ...Option,
) (*Participant, error) {
	pc := ParticipantConfig{
		validator: quorumvote.HeightValidator{EpochHeight: cfg.EpochHeight},
		builder:   quorumproposal.NextHeader{},
	}
	for _, apply := range opts {
		apply(&pc)
	}

	pk := sk.PublicKey()
	log = log.With().Str("node", pk.String()).Logger()

	lock, err := cfg.UpgradeLock()
	if err != nil {
		return nil, fmt.Errorf("could not initialize upgrade lock: %w", err)
	}
	coordinator, err := committees.NewEpochMembershipCoordinator(log, membership, catchup, lock, metrics, cfg.CoordinatorConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize membership coordinator: %w", err)
	}
	c, err := state.Restore(ctx, log, storage, state.RestoreConfig{
		Genesis:              genesis,
		AnchorState:          pc.anchorState,
		EpochHeight:          cfg.EpochHeight,
		DrbDifficulty:        cfg.DrbDifficulty,
		DrbUpgradeDifficulty: cfg.DrbUpgradeDifficulty,
		UpgradeLock:          lock,
	})
	if err != nil {
		return nil, fmt.Errorf("could not restore consensus state: %w", err)
	}
	consensus := state.NewOuterConsensus(c)

	// every task subscribes before anything is published
	bus := events.NewBus()
	aggregator, err := voteaggregator.NewTask(log, pk, lock, coordinator, metrics, bus.Subscribe(), bus, cfg.AggregatorConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize vote aggregator: %w", err)
	}
	proposer, err := quorumproposal.NewTask(log, cfg.ProposalConfig(sk), consensus, coordinator, storage, lock, pc.builder, metrics, bus.Subscribe(), bus)
	if err != nil {
		return nil, fmt.Errorf("could not initialize quorum proposal task: %w", err)
	}
	voter, err := quorumvote.NewTask(log, cfg.VoteConfig(sk), consensus, coordinator, storage, lock, pc.validator, metrics, bus.Subscribe(), bus)
	if err != nil {
		return nil, fmt.Errorf("could not initialize quorum vote task: %w", err)
	}
	receiver := quorumproposalrecv.NewTask(log, quorumproposalrecv.Config{EpochHeight: cfg.EpochHeight}, consensus, coordinator, storage, lock, metrics, bus.Subscribe(), bus)
	availability, err := da.NewTask(log, da.Config{PublicKey: pk, PrivateKey: sk}, consensus, coordinator, storage, lock, payloads, bus.Subscribe(), bus)
	if err != nil {
		return nil, fmt.Errorf("could not initialize DA task: %w", err)
	}
	networkRelay := relay.New(log, network, coordinator, bus.Subscribe(), bus)
	notifier := notifications.NewRelay(bus.Subscribe(), consumer)

	p := &Participant{
		log:         log.With().Str("component", "participant").Logger(),
		publicKey:   pk,
		bus:         bus,
		consensus:   consensus,
		lock:        lock,
		memberships: coordinator,
		relay:       networkRelay,
		components:  []component.Component{aggregator, proposer, voter, receiver, availability, networkRelay, notifier},
	}
	p.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(p.run).
		Build()
	return p, nil
}

// run starts the tasks and, once all are ready, enters the view after the
// restored one with the high QC as the QC of the previous view.
func (p *Participant) run(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer p.bus.Close()
	for _, c := range p.components {
		c.Start(ctx)
	}
	for _, c := range p.components {
		select {
		case <-c.Ready():
		case <-ctx.Done():
			return
		}
	}

	c, release := p.consensus.Read()
	view := c.CurView().Next()
	epoch := c.CurEpoch()
	highQC := c.HighQC()
	release()
	p.log.Info().
		Uint64("view", uint64(view)).
		Uint64("high_qc_view", uint64(highQC.View())).
		Msg("starting consensus")
	p.bus.Publish(events.ViewChange{View: view, Epoch: epoch})
	p.bus.Publish(events.Qc2Formed{QC: highQC})
	ready()

	<-ctx.Done()
	for _, c := range p.components {
		<-c.Done()
	}
}

// Deliver hands a message received from sender to the replica.
//
// Expected error returns during normal operations:
//   - codec errors for payloads that don't decode into a consensus message
func (p *Participant) Deliver(payload []byte, sender signature.PublicKey) error {
	return p.relay.Deliver(payload, sender)
}

func (p *Participant) PublicKey() signature.PublicKey { return p.publicKey }

func (p *Participant) Consensus() *state.OuterConsensus { return p.consensus }

func (p *Participant) UpgradeLock() *model.UpgradeLock { return p.lock }

func (p *Participant) Memberships() *committees.EpochMembershipCoordinator { return p.memberships }
