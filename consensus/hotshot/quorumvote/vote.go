package quorumvote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/dependency"
	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
)

// DefaultSecondShareTimeout bounds the wait for the VID share of the other
// epoch when voting on an epoch transition block.
const DefaultSecondShareTimeout = 5 * time.Second

// reasons a replica doesn't vote in a view, as reported to metrics
const (
	reasonInconsistent   = "inconsistent_commitment"
	reasonStorage        = "storage"
	reasonMissingShare   = "missing_vid_share"
	reasonState          = "state"
	reasonMembership     = "membership"
	reasonNotInCommittee = "not_in_committee"
	reasonCancelled      = "cancelled"
	reasonAlreadyVoted   = "already_voted"
	reasonSigning        = "signing"
)

// skipError is why the replica doesn't vote in a view.
type skipError struct {
	reason string
	err    error
}

func skip(reason string, err error) error {
	if isCancelled(err) {
		reason = reasonCancelled
	}
	return skipError{reason: reason, err: err}
}

func (e skipError) Error() string { return e.err.Error() }
func (e skipError) Unwrap() error { return e.err }

func skipReason(err error) string {
	var e skipError
	if errors.As(err, &e) {
		return e.reason
	}
	return reasonState
}

// voteInput is what the vote of a view is built from.
type voteInput struct {
	proposal   *model.SignedQuorumProposal
	parent     *model.Leaf
	leaf       *model.Leaf
	dac        *model.DaCertificate2
	shares     []*model.SignedVidShare
	membership *committees.EpochMembership
	extended   bool
	root       bool
}

// vote runs once the dependencies of view completed. Preparation is aborted
// when depCtx is cancelled; once the vote is being submitted only ctx, the
// task's lifetime, can stop it.
func (t *Task) vote(ctx, depCtx context.Context, view model.View, evs []events.Event) {
	t.tasks.Remove(view)
	log := t.log.With().Uint64("view", uint64(view)).Logger()

	err := t.tryVote(ctx, depCtx, view, evs)
	if err != nil {
		reason := skipReason(err)
		t.metrics.CountVoteSkipped(reason)
		switch reason {
		case reasonCancelled, reasonAlreadyVoted:
			log.Debug().Err(err).Str("reason", reason).Msg("not voting")
		default:
			log.Warn().Err(err).Str("reason", reason).Msg("not voting")
		}
	}
	t.UpdateLatestVotedView(view)
}

func (t *Task) tryVote(ctx, depCtx context.Context, view model.View, evs []events.Event) error {
	in, err := t.prepare(depCtx, view, evs)
	if err != nil {
		return err
	}
	return t.submit(ctx, view, in)
}

// gather checks that the dependency events agree on the payload.
func gather(view model.View, evs []events.Event) (*voteInput, error) {
	if len(evs) != 3 {
		return nil, fmt.Errorf("expected 3 dependency events, got %d", len(evs))
	}
	p, ok := evs[0].(events.QuorumProposalValidated)
	if !ok {
		return nil, fmt.Errorf("unexpected proposal dependency event %v", evs[0].Kind())
	}
	d, ok := evs[1].(events.DaCertificateValidated)
	if !ok {
		return nil, fmt.Errorf("unexpected DA certificate dependency event %v", evs[1].Kind())
	}
	v, ok := evs[2].(events.VidShareValidated)
	if !ok {
		return nil, fmt.Errorf("unexpected vid share dependency event %v", evs[2].Kind())
	}

	payload := p.Proposal.Data.BlockHeader.PayloadCommitment
	if d.Cert.Data.PayloadCommit != payload {
		return nil, model.NewInconsistentCommitmentErrorf(view, "DA certificate payload %v, proposed %v", d.Cert.Data.PayloadCommit, payload)
	}
	share := v.Share.Data
	if share.IsNextEpochShare() {
		if next := d.Cert.Data.NextEpochPayloadCommit; next != nil && *next != share.PayloadCommitment {
			return nil, model.NewInconsistentCommitmentErrorf(view, "next epoch vid share payload %v, DA certificate %v", share.PayloadCommitment, *next)
		}
	} else if share.PayloadCommitment != payload {
		return nil, model.NewInconsistentCommitmentErrorf(view, "vid share payload %v, proposed %v", share.PayloadCommitment, payload)
	}

	return &voteInput{
		proposal: p.Proposal,
		parent:   p.ParentLeaf,
		dac:      d.Cert,
		shares:   []*model.SignedVidShare{v.Share},
	}, nil
}

func (t *Task) prepare(ctx context.Context, view model.View, evs []events.Event) (*voteInput, error) {
	in, err := gather(view, evs)
	if err != nil {
		return nil, skip(reasonInconsistent, err)
	}
	in.leaf = model.LeafFromProposal(in.proposal.Data)
	if in.leaf.ParentCommitment != in.parent.Commit() {
		return nil, skip(reasonInconsistent, model.NewInconsistentCommitmentErrorf(view,
			"proposal extends %v, validated parent is %v", in.leaf.ParentCommitment, in.parent.Commit()))
	}

	if err := t.storage.AppendProposal(ctx, in.proposal); err != nil {
		return nil, skip(reasonStorage, fmt.Errorf("could not persist proposal: %w", err))
	}

	eh := t.config.EpochHeight
	epoch := in.leaf.Epoch(eh)
	if t.lock.EpochsEnabled(view) && model.IsEpochTransition(in.leaf.Height(), eh) {
		if err := t.collectTransitionShares(ctx, in, epoch); err != nil {
			return nil, err
		}
	}

	if err := t.applyLeaf(ctx, in); err != nil {
		return nil, err
	}

	in.membership, err = t.memberships.MembershipForEpoch(ctx, epoch)
	if err != nil {
		return nil, skip(reasonMembership, fmt.Errorf("no membership for epoch %v: %w", epoch, err))
	}
	in.extended = model.IsLastBlock(in.leaf.Height(), eh)
	in.root = model.IsEpochRoot(in.leaf.Height(), eh)
	return in, nil
}

// collectTransitionShares makes in carry the replica's shares of both epochs
// if it has stake in both, and checks the share of the leaf's own epoch.
func (t *Task) collectTransitionShares(ctx context.Context, in *voteInput, epoch model.Epoch) error {
	current, err := t.memberships.StakeTableForEpoch(ctx, epoch)
	if err != nil {
		return skip(reasonMembership, fmt.Errorf("no stake table for epoch %v: %w", epoch, err))
	}
	next, err := t.memberships.StakeTableForEpoch(ctx, epoch.Next())
	if err != nil {
		return skip(reasonMembership, fmt.Errorf("no stake table for epoch %v: %w", epoch.Next(), err))
	}
	if !current.HasStake(t.config.PublicKey) || !next.HasStake(t.config.PublicKey) {
		return nil
	}

	target := epoch.Next()
	if in.shares[0].Data.TargetEpoch == target {
		target = epoch
	}
	second, err := t.waitForSecondShare(ctx, in.leaf.View(), target, in.dac)
	if err != nil {
		return skip(reasonMissingShare, err)
	}
	in.shares = append(in.shares, second)

	for _, share := range in.shares {
		if share.Data.TargetEpoch != epoch {
			continue
		}
		if share.Data.PayloadCommitment != in.leaf.PayloadCommitment() {
			t.log.Error().
				Uint64("view", uint64(in.leaf.View())).
				Str("share_payload", share.Data.PayloadCommitment.String()).
				Str("leaf_payload", in.leaf.PayloadCommitment().String()).
				Msg("vid share of the current epoch doesn't match the leaf, this should never happen")
			return skip(reasonInconsistent, model.NewInconsistentCommitmentErrorf(in.leaf.View(), "current epoch vid share doesn't match the leaf"))
		}
	}
	return nil
}

// expectedShareCommitment returns the payload commitment the DA certificate
// fixes for shares dispersed to target's committee.
func expectedShareCommitment(dac *model.DaCertificate2, target model.Epoch) (model.VidCommitment, bool) {
	if target == dac.Data.Epoch {
		return dac.Data.PayloadCommit, true
	}
	if dac.Data.NextEpochPayloadCommit == nil {
		return model.ZeroCommitment, false
	}
	return *dac.Data.NextEpochPayloadCommit, true
}

// waitForSecondShare returns the replica's share of view dispersed to the
// committee of target, waiting for it if it didn't arrive yet.
func (t *Task) waitForSecondShare(ctx context.Context, view model.View, target model.Epoch, dac *model.DaCertificate2) (*model.SignedVidShare, error) {
	expected, ok := expectedShareCommitment(dac, target)
	if !ok {
		return nil, fmt.Errorf("DA certificate of view %d has no payload commitment for epoch %v", view, target)
	}
	matches := func(share *model.SignedVidShare) bool {
		return share.Data.View() == view &&
			share.Data.TargetEpoch == target &&
			share.Data.RecipientKey == t.config.PublicKey &&
			share.Data.PayloadCommitment == expected
	}

	// subscribe before looking at the stored shares so none is missed
	sub := t.sub.Clone()
	c, release := t.consensus.Read()
	share, ok := c.VidShare(view, t.config.PublicKey, target)
	release()
	if ok && matches(share) {
		sub.Close()
		return share, nil
	}

	dep := dependency.NewEventDependency(sub, "second_vid_share", func(ev events.Event) bool {
		e, ok := ev.(events.VidShareValidated)
		return ok && matches(e.Share)
	})
	timeout := t.config.SecondShareTimeout
	if timeout <= 0 {
		timeout = DefaultSecondShareTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	evs, err := dep.Completed(ctx)
	if err != nil {
		return nil, fmt.Errorf("no vid share for epoch %v: %w", target, err)
	}
	return evs[0].(events.VidShareValidated).Share, nil
}

// applyLeaf validates the proposed header against the parent state and
// records the leaf.
func (t *Task) applyLeaf(ctx context.Context, in *voteInput) error {
	c, release := t.consensus.Read()
	parentState, ok := c.State(in.parent.View())
	release()
	if !ok {
		return skip(reasonState, fmt.Errorf("no state for parent view %d: %w", in.parent.View(), state.ErrInconsistentState))
	}

	view := in.leaf.View()
	version, err := t.lock.Version(view)
	if err != nil {
		return skip(reasonState, err)
	}
	payloadSize := in.shares[0].Data.PayloadSize
	newState, delta, err := t.validator.ValidateAndApplyHeader(ctx, parentState, in.parent, in.leaf.BlockHeader, payloadSize, version, view)
	if err != nil {
		return skip(reasonState, fmt.Errorf("header validation failed: %w", err))
	}

	c, release = t.consensus.Write()
	defer release()
	if err := c.UpdateLeaf(in.leaf, newState, delta); err != nil {
		if !errors.Is(err, state.ErrAlreadyExists) {
			return skip(reasonState, err)
		}
		t.log.Debug().Err(err).Uint64("view", uint64(view)).Msg("leaf already recorded")
	}
	c.UpdateHighestBlock(in.leaf.Height())
	return nil
}

func (t *Task) submit(ctx context.Context, view model.View, in *voteInput) error {
	m := in.membership
	epoch := m.Epoch()
	if !epoch.IsSome() || !in.extended {
		next := view.Next()
		t.publisher.Publish(events.ViewChange{View: next, Epoch: t.nextViewEpoch(next, epoch)})
	}

	if leader, err := m.Leader(view); err == nil {
		c, release := t.consensus.Write()
		c.UpdateValidatorParticipation(leader, epoch, true)
		release()
	}

	if err := t.checkCommittee(ctx, in); err != nil {
		return err
	}

	data := model.QuorumData2{LeafCommit: in.leaf.Commit(), Epoch: epoch}
	if epoch.IsSome() {
		height := in.leaf.Height()
		data.BlockNumber = &height
	}
	epochs := t.lock.EpochsEnabled(view)
	vote, err := model.CreateSignedVote(data, view, t.config.PrivateKey, t.lock)
	if err != nil {
		return skip(reasonSigning, err)
	}

	for _, share := range in.shares {
		if err := t.storage.AppendVid(ctx, share); err != nil {
			return skip(reasonStorage, fmt.Errorf("could not persist vid share: %w", err))
		}
	}

	var stateVote *model.LightClientStateUpdateVote
	if epochs && in.root && !in.extended {
		if stateVote, err = t.stateVote(ctx, in); err != nil {
			return err
		}
	}

	c, release := t.consensus.Write()
	ok := c.UpdateAction(state.ActionVote, view)
	release()
	if !ok {
		return skip(reasonAlreadyVoted, model.ErrViewAlreadyVoted)
	}

	switch {
	case epochs && in.extended:
		t.publisher.Publish(events.ExtendedQuorumVoteSend{Vote: vote})
	case stateVote != nil:
		t.publisher.Publish(events.EpochRootQuorumVoteSend{Vote: &model.EpochRootQuorumVote{Vote: vote, StateVote: stateVote}})
	default:
		t.publisher.Publish(events.QuorumVoteSend{Vote: vote})
	}
	t.metrics.SetVotedView(uint64(view))
	return nil
}

// checkCommittee requires stake in the leaf's epoch, or in the next epoch
// for an epoch transition block.
func (t *Task) checkCommittee(ctx context.Context, in *voteInput) error {
	m := in.membership
	if m.HasStake(t.config.PublicKey) {
		return nil
	}
	if in.leaf.WithEpoch && model.IsEpochTransition(in.leaf.Height(), t.config.EpochHeight) {
		next, err := m.NextEpochStakeTable(ctx)
		if err != nil {
			return skip(reasonMembership, err)
		}
		if next.HasStake(t.config.PublicKey) {
			return nil
		}
	}
	return skip(reasonNotInCommittee, fmt.Errorf("no stake in epoch %v: %w", m.Epoch(), model.ErrNotInCommittee))
}

// stateVote signs the light client state after the epoch root, together
// with the stake table of the next epoch.
func (t *Task) stateVote(ctx context.Context, in *voteInput) (*model.LightClientStateUpdateVote, error) {
	next, err := in.membership.NextEpochStakeTable(ctx)
	if err != nil {
		return nil, skip(reasonMembership, err)
	}
	nextState := model.StakeTableStateOf(next.StakeTable(), next.SuccessThreshold())
	lcState := in.leaf.BlockHeader.LightClientState(in.leaf.View())
	epoch := model.EpochFromBlockNumber(in.leaf.Height(), t.config.EpochHeight)
	vote, err := model.CreateLightClientStateUpdateVote(epoch, lcState, nextState, t.config.StateKey)
	if err != nil {
		return nil, skip(reasonSigning, err)
	}
	return vote, nil
}
