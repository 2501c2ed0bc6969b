// Package relay connects the event bus of a replica to the network: it sends
// outbound consensus messages and publishes inbound ones as events.
package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/module/component"
	"github.com/onflow/hotshot/module/irrecoverable"
	"github.com/onflow/hotshot/network/codec"
	"github.com/onflow/hotshot/network/codec/cbor"
)

// Memberships resolves the committee of an epoch.
type Memberships interface {
	MembershipForEpoch(ctx context.Context, epoch model.Epoch) (*committees.EpochMembership, error)
}

// Relay sends the messages of outbound events over the network and
// publishes the messages delivered to it.
type Relay struct {
	*component.ComponentManager
	log         zerolog.Logger
	codec       *cbor.Codec
	network     hotshot.Network
	memberships Memberships
	sub         *events.Subscription
	publisher   events.Publisher
}

func New(
	log zerolog.Logger,
	network hotshot.Network,
	memberships Memberships,
	sub *events.Subscription,
	publisher events.Publisher,
) *Relay {
	r := &Relay{
		log:         log.With().Str("component", "network_relay").Logger(),
		codec:       cbor.NewCodec(),
		network:     network,
		memberships: memberships,
		sub:         sub,
		publisher:   publisher,
	}
	r.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(r.processEvents).
		Build()
	return r
}

func (r *Relay) processEvents(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	defer r.sub.Close()
	ready()
	for {
		ev, err := r.sub.Next(ctx)
		if err != nil {
			return
		}
		err = r.send(ctx, ev)
		if err != nil {
			r.log.Warn().Err(err).Str("event", fmt.Sprintf("%T", ev)).Msg("could not send message")
		}
	}
}

// send transmits the message of an outbound event. Other events are ignored.
func (r *Relay) send(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.QuorumProposalSend:
		return r.broadcast(ctx, e.Proposal)
	case events.DaProposalSend:
		return r.broadcast(ctx, e.Proposal)
	case events.DaVoteSend:
		// DA votes are collected by the leader of the view itself
		return r.toLeader(ctx, e.Vote.ViewNumber, e.Vote.Data.Epoch, e.Vote)
	case events.QuorumVoteSend:
		return r.toLeader(ctx, e.Vote.ViewNumber.Next(), e.Vote.Data.Epoch, e.Vote)
	case events.ExtendedQuorumVoteSend:
		// the last block of an epoch is certified by both committees
		err := r.toLeader(ctx, e.Vote.ViewNumber.Next(), e.Vote.Data.Epoch, e.Vote)
		if err != nil {
			return err
		}
		return r.toLeader(ctx, e.Vote.ViewNumber.Next(), e.Vote.Data.Epoch.Next(), e.Vote)
	case events.EpochRootQuorumVoteSend:
		return r.toLeader(ctx, e.Vote.Vote.ViewNumber.Next(), e.Vote.Vote.Data.Epoch, e.Vote)
	case events.DacSend:
		return r.broadcast(ctx, e.Cert)
	case events.VidDisperseSend:
		for _, share := range e.Shares {
			err := r.direct(ctx, share, share.Data.RecipientKey)
			if err != nil {
				return err
			}
		}
		return nil
	case events.ViewSyncPreCommitCertificateSend:
		return r.broadcast(ctx, e.Cert)
	case events.ViewSyncCommitCertificateSend:
		return r.broadcast(ctx, e.Cert)
	case events.ViewSyncFinalizeCertificateSend:
		return r.broadcast(ctx, e.Cert)
	}
	return nil
}

func (r *Relay) broadcast(ctx context.Context, msg interface{}) error {
	payload, err := r.codec.Encode(msg)
	if err != nil {
		return err
	}
	return r.network.Broadcast(ctx, payload)
}

func (r *Relay) direct(ctx context.Context, msg interface{}, recipient signature.PublicKey) error {
	payload, err := r.codec.Encode(msg)
	if err != nil {
		return err
	}
	return r.network.DirectMessage(ctx, payload, recipient)
}

func (r *Relay) toLeader(ctx context.Context, view model.View, epoch model.Epoch, msg interface{}) error {
	m, err := r.memberships.MembershipForEpoch(ctx, epoch)
	if err != nil {
		return fmt.Errorf("could not resolve membership of epoch %d: %w", epoch, err)
	}
	leader, err := m.Leader(view)
	if err != nil {
		return fmt.Errorf("could not resolve leader of view %d: %w", view, err)
	}
	return r.direct(ctx, msg, leader)
}

// Deliver decodes a message received from sender and publishes it as an
// inbound event.
//
// Expected error returns during normal operations:
//   - codec errors for payloads that don't decode into a consensus message
func (r *Relay) Deliver(payload []byte, sender signature.PublicKey) error {
	msg, err := r.codec.Decode(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("sender", sender.String()).Msg("dropping undecodable message")
		return err
	}

	switch m := msg.(type) {
	case *model.SignedQuorumProposal:
		r.publisher.Publish(events.QuorumProposalRecv{Proposal: m, Sender: sender})
	case *model.SignedDaProposal:
		r.publisher.Publish(events.DaProposalRecv{Proposal: m, Sender: sender})
	case *model.QuorumVote2:
		r.publisher.Publish(events.QuorumVoteRecv{Vote: m})
	case *model.EpochRootQuorumVote:
		r.publisher.Publish(events.EpochRootQuorumVoteRecv{Vote: m})
	case *model.DaVote2:
		r.publisher.Publish(events.DaVoteRecv{Vote: m})
	case *model.TimeoutVote2:
		r.publisher.Publish(events.TimeoutVoteRecv{Vote: m})
	case *model.ViewSyncPreCommitVote2:
		r.publisher.Publish(events.ViewSyncPreCommitVoteRecv{Vote: m})
	case *model.ViewSyncCommitVote2:
		r.publisher.Publish(events.ViewSyncCommitVoteRecv{Vote: m})
	case *model.ViewSyncFinalizeVote2:
		r.publisher.Publish(events.ViewSyncFinalizeVoteRecv{Vote: m})
	case *model.UpgradeVote:
		r.publisher.Publish(events.UpgradeVoteRecv{Vote: m})
	case *model.DaCertificate2:
		r.publisher.Publish(events.DaCertificateRecv{Cert: m})
	case *model.ViewSyncFinalizeCertificate2:
		r.publisher.Publish(events.ViewSyncFinalizeCertificateRecv{Cert: m})
	case *model.SignedVidShare:
		r.publisher.Publish(events.VidShareRecv{Share: m, Sender: sender})
	case *codec.HighQCMessage:
		r.publisher.Publish(events.HighQcRecv{QC: m.QC, NextEpochQC: m.NextEpochQC, Sender: sender})
	default:
		// the view sync task driving pre-commit and commit rounds isn't run here
		r.log.Debug().Str("message", fmt.Sprintf("%T", msg)).Msg("dropping message without consumer")
	}
	return nil
}
