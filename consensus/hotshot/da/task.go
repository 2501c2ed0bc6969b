// Package da runs the data availability round of a view. The leader sends
// the payload to the DA committee and disperses it to the quorum committee;
// DA members vote once they verified the leader's signature, so the DA
// certificate proves the payload is held by enough of them.
package da

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/consensus/hotshot/state"
	"github.com/onflow/hotshot/consensus/hotshot/vid"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
)

// Memberships resolves the committees of an epoch.
type Memberships interface {
	MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
}

var _ Memberships = (*committees.EpochMembershipCoordinator)(nil)

type Config struct {
	PublicKey  signature.PublicKey
	PrivateKey *signature.PrivateKey
}

// Task proposes payloads in the views this node leads and votes on the
// payloads of others while it's a DA member.
type Task struct {
	*component.ComponentManager
	log         zerolog.Logger
	config      Config
	consensus   *state.OuterConsensus
	memberships Memberships
	storage     hotshot.Storage
	lock        *model.UpgradeLock
	payloads    PayloadSource
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
	payloads PayloadSource,
	sub *events.Subscription,
	publisher events.Publisher,
) (*Task, error) {
	if config.PrivateKey == nil {
		return nil, model.NewConfigurationErrorf("DA task needs a private key")
	}
	if config.PublicKey.IsZero() {
		config.PublicKey = config.PrivateKey.PublicKey()
	}
	t := &Task{
		log:         log.With().Str("component", "da").Logger(),
		config:      config,
		consensus:   consensus,
		memberships: memberships,
		storage:     storage,
		lock:        lock,
		payloads:    payloads,
		sub:         sub,
		publisher:   publisher,
	}
	t.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(t.processEvents).
		Build()
	return t, nil
}

func (t *Task) processEvents(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
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
	case events.ViewChange:
		if err := t.propose(ctx, e.View, e.Epoch); err != nil {
			log := t.log.With().Uint64("view", uint64(e.View)).Logger()
			if errors.Is(err, model.ErrNotLeader) || errors.Is(err, model.ErrViewAlreadyProposed) {
				log.Trace().Err(err).Msg("not proposing a payload")
				return
			}
			log.Warn().Err(err).Msg("could not propose a payload")
		}
	case events.DaProposalRecv:
		t.handleProposal(ctx, e)
	case events.DaCertificateValidated:
		if err := t.storage.AppendDa(ctx, e.Cert); err != nil {
			t.log.Error().Err(err).Uint64("view", uint64(e.Cert.View())).Msg("could not persist DA certificate")
		}
	}
}

// propose sends the payload of the view to the DA committee and its VID
// shares to the quorum committee, if this node leads the view.
//
// Expected error returns during normal operations:
//   - model.ErrNotLeader if another node leads the view
//   - model.ErrViewAlreadyProposed if a payload was proposed for this or a later view
func (t *Task) propose(ctx context.Context, view model.View, epoch model.Epoch) error {
	m, err := t.memberships.MembershipForEpoch(ctx, epoch)
	if err != nil {
		return err
	}
	leader, err := m.Leader(view)
	if err != nil {
		return err
	}
	if leader != t.config.PublicKey {
		return model.ErrNotLeader
	}

	c, release := t.consensus.Write()
	first := c.UpdateAction(state.ActionDaPropose, view)
	epochs := t.lock.EpochsEnabled(view)
	inTransition := epochs && c.IsHighQCGeRootBlock()
	nextEpochShares := epochs && c.IsHighQCForEpochTransition()
	release()
	if !first {
		return model.ErrViewAlreadyProposed
	}

	payload, metadata, err := t.payloads.Payload(ctx, view, epoch)
	if err != nil {
		return fmt.Errorf("no payload: %w", err)
	}

	signed, err := model.SignDaProposal(&model.DaProposal2{
		Payload:      payload,
		Metadata:     metadata,
		ViewNumber:   view,
		Epoch:        epoch,
		InTransition: inTransition,
	}, t.config.PrivateKey)
	if err != nil {
		return err
	}

	dispersal, err := vid.Disperse(payload, m.CommitteeMembers(), view, epoch, epoch)
	if err != nil {
		return fmt.Errorf("could not disperse payload: %w", err)
	}
	shares := dispersal.Shares
	if nextEpochShares {
		next, err := m.NextEpochStakeTable(ctx)
		if err != nil {
			return err
		}
		nd, err := vid.Disperse(payload, next.CommitteeMembers(), view, epoch, next.Epoch())
		if err != nil {
			return fmt.Errorf("could not disperse payload to the next epoch: %w", err)
		}
		shares = append(shares, nd.Shares...)
	}
	signedShares := make([]*model.SignedVidShare, 0, len(shares))
	for _, share := range shares {
		s, err := model.SignVidShare(share, t.config.PrivateKey)
		if err != nil {
			return err
		}
		signedShares = append(signedShares, s)
	}

	c, release = t.consensus.Write()
	err = c.UpdateSavedPayloads(view, &state.PayloadWithMetadata{Payload: payload, Metadata: metadata})
	release()
	if err != nil && !errors.Is(err, state.ErrAlreadyExists) {
		return err
	}

	t.log.Debug().
		Uint64("view", uint64(view)).
		Int("payload_size", len(payload)).
		Int("vid_shares", len(signedShares)).
		Msg("proposing payload")
	t.publisher.Publish(events.DaProposalSend{Proposal: signed, Sender: t.config.PublicKey})
	t.publisher.Publish(events.VidDisperseSend{
		ViewNumber: view,
		Commitment: dispersal.Commitment,
		Shares:     signedShares,
		Sender:     t.config.PublicKey,
	})
	t.publisher.Publish(events.SendPayloadCommitmentAndMetadata{
		ViewNumber:        view,
		Epoch:             epoch,
		Commitment:        dispersal.Commitment,
		BuilderCommitment: builderCommitment(payload),
		Metadata:          metadata,
	})
	return nil
}

func builderCommitment(payload []byte) model.Commitment {
	return model.NewCommitmentBuilder("builder commitment").
		VarSizeField("payload", payload).
		Finalize()
}

func (t *Task) handleProposal(ctx context.Context, e events.DaProposalRecv) {
	p := e.Proposal.Data
	view := p.View()
	log := t.log.With().
		Uint64("view", uint64(view)).
		Str("sender", e.Sender.String()).
		Logger()
	if err := t.vote(ctx, e.Proposal, e.Sender); err != nil {
		if errors.Is(err, model.ErrStaleView) || errors.Is(err, model.ErrNotInCommittee) {
			log.Debug().Err(err).Msg("not voting on payload")
			return
		}
		log.Warn().Err(err).Msg("dropping DA proposal")
	}
}

// vote checks the DA proposal and, if this node is a DA member of the
// epoch, sends its vote over the payload commitment to the leader.
//
// Expected error returns during normal operations:
//   - model.ErrStaleView if the proposal is more than one view old
//   - model.ErrNotLeader if the sender doesn't lead the view
//   - model.ErrNotInCommittee if this node has no DA stake
//   - any other error if the proposal is invalid
func (t *Task) vote(ctx context.Context, signed *model.SignedDaProposal, sender signature.PublicKey) error {
	p := signed.Data
	view := p.View()

	c, release := t.consensus.Read()
	cur := c.CurView()
	release()
	if view.Next() < cur {
		return fmt.Errorf("proposal of view %d in view %d: %w", view, cur, model.ErrStaleView)
	}

	m, err := t.memberships.MembershipForEpoch(ctx, p.Epoch)
	if err != nil {
		return err
	}
	leader, err := m.Leader(view)
	if err != nil {
		return err
	}
	if sender != leader {
		return fmt.Errorf("sender %s: %w", sender, model.ErrNotLeader)
	}
	if err := model.VerifyDaProposal(signed, leader); err != nil {
		return err
	}
	if !m.HasDaStake(t.config.PublicKey) {
		return fmt.Errorf("epoch %v: %w", p.Epoch, model.ErrNotInCommittee)
	}

	commit, err := vid.PayloadCommitment(p.Payload, m.TotalNodes())
	if err != nil {
		return err
	}
	var next *model.VidCommitment
	if p.InTransition {
		nm, err := m.NextEpochStakeTable(ctx)
		if err != nil {
			return err
		}
		nc, err := vid.PayloadCommitment(p.Payload, nm.TotalNodes())
		if err != nil {
			return err
		}
		next = &nc
	}

	c, release = t.consensus.Write()
	c.UpdateAction(state.ActionDaVote, view)
	if err := c.UpdateDaView(view, p.Epoch, commit); err != nil && !errors.Is(err, state.ErrAlreadyExists) {
		release()
		return err
	}
	if err := c.UpdateSavedPayloads(view, &state.PayloadWithMetadata{Payload: p.Payload, Metadata: p.Metadata}); err != nil && !errors.Is(err, state.ErrAlreadyExists) {
		release()
		return err
	}
	release()

	vote, err := model.CreateSignedVote(model.DaData2{
		PayloadCommit:          commit,
		NextEpochPayloadCommit: next,
		Epoch:                  p.Epoch,
	}, view, t.config.PrivateKey, t.lock)
	if err != nil {
		return err
	}
	t.publisher.Publish(events.DaVoteSend{Vote: vote})
	return nil
}
