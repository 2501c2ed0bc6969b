package quorumproposal

import (
	"context"
	"fmt"
	"time"

	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
)

// proposalContext is what the event loop knew when it created the task.
type proposalContext struct {
	start             time.Time
	formedUpgradeCert *model.UpgradeCertificate
}

// proposalInput is what a proposal is built from.
type proposalInput struct {
	payload  *events.SendPayloadCommitmentAndMetadata
	vid      *events.VidDisperseSend
	parentQC *model.QuorumCertificate2
	evidence *model.ViewChangeEvidence2
}

func collectInput(evs []events.Event) proposalInput {
	var in proposalInput
	var timeout *model.TimeoutCertificate2
	var viewSync *model.ViewSyncFinalizeCertificate2
	for _, ev := range evs {
		switch e := ev.(type) {
		case events.SendPayloadCommitmentAndMetadata:
			in.payload = &e
		case events.VidDisperseSend:
			in.vid = &e
		case events.Qc2Formed:
			if e.TC != nil {
				timeout = e.TC
			} else {
				in.parentQC = e.QC
			}
		case events.ViewSyncFinalizeCertificateRecv:
			viewSync = e.Cert
		}
	}
	switch {
	case viewSync != nil:
		in.evidence = &model.ViewChangeEvidence2{ViewSync: viewSync}
	case timeout != nil:
		in.evidence = &model.ViewChangeEvidence2{Timeout: timeout}
	}
	return in
}

// propose runs once the dependencies of view completed.
func (t *Task) propose(ctx context.Context, view model.View, pc proposalContext, evs []events.Event) {
	t.tasks.Remove(view)
	log := t.log.With().Uint64("view", uint64(view)).Logger()
	err := t.tryPropose(ctx, view, pc, collectInput(evs))
	switch {
	case err == nil:
	case isCancelled(err):
		log.Debug().Err(err).Msg("proposal cancelled")
	default:
		log.Warn().Err(err).Msg("not proposing")
	}
}

func (t *Task) tryPropose(ctx context.Context, view model.View, pc proposalContext, in proposalInput) error {
	if in.payload == nil || in.vid == nil {
		return fmt.Errorf("proposal dependencies completed without payload and VID dispersal, this should never happen")
	}
	if in.payload.ViewNumber != view {
		return fmt.Errorf("payload is for view %d", in.payload.ViewNumber)
	}
	if in.vid.Commitment != in.payload.Commitment {
		return model.NewInconsistentCommitmentErrorf(view, "VID dispersal doesn't match the payload commitment")
	}

	version, err := t.lock.Version(view)
	if err != nil {
		return err
	}
	epochs := version.AtLeast(model.EpochVersion)
	eh := t.config.EpochHeight
	deadline := pc.start.Add(t.config.ViewTimeout)

	parentQC := in.parentQC
	var receivedNext *model.NextEpochQuorumCertificate2
	if parentQC == nil {
		if epochs {
			parentQC, receivedNext, err = t.waitForHighestQC(ctx, pc.start.Add(t.config.ViewTimeout/2))
			if err != nil {
				return err
			}
		} else {
			c, release := t.consensus.Read()
			parentQC = c.HighQC()
			release()
		}
	}

	parent, parentState, err := t.waitForParent(ctx, parentQC, deadline)
	if err != nil {
		return err
	}

	// the parent's certificate takes precedence over one formed here
	upgradeCert := parent.UpgradeCertificate
	if upgradeCert == nil {
		upgradeCert = pc.formedUpgradeCert
	}
	if upgradeCert != nil && model.UpgradeCertificateIsRelevant(upgradeCert, view, t.lock.DecidedUpgradeCertificate()) != nil {
		upgradeCert = nil
	}

	evidence := in.evidence
	if evidence != nil && !evidence.IsValidForView(view) {
		evidence = nil
	}

	header, err := t.builder.BuildHeader(ctx, parentState, parent, *in.payload, version)
	if err != nil {
		return fmt.Errorf("could not build header: %w", err)
	}

	epoch := model.OptionEpochFromBlockNumber(epochs, header.BlockNumber, eh)
	m, err := t.memberships.MembershipForEpoch(ctx, epoch)
	if err != nil {
		return err
	}
	leader, err := m.Leader(view)
	if err != nil {
		return err
	}
	if leader != t.config.PublicKey {
		t.log.Warn().
			Uint64("view", uint64(view)).
			Uint64("epoch", uint64(epoch)).
			Msg("not the leader in the epoch of the proposed block, not proposing")
		return nil
	}

	var nextEpochQC *model.NextEpochQuorumCertificate2
	if bn, ok := parentQC.Data.Block(); epochs && ok && model.IsEpochTransition(bn, eh) {
		nextEpochQC, err = t.waitForNextEpochQC(ctx, parentQC, receivedNext, deadline)
		if err != nil {
			return err
		}
	}

	var nextDrb *model.DrbResult
	if epochs && model.IsEpochTransition(header.BlockNumber, eh) {
		c, release := t.consensus.Read()
		if result, ok := c.DrbResults().Get(epoch.Next()); ok {
			nextDrb = &result
		}
		release()
	}

	p := &model.QuorumProposal2{
		BlockHeader:        header,
		ViewNumber:         view,
		Epoch:              epoch,
		JustifyQC:          parentQC,
		NextEpochJustifyQC: nextEpochQC,
		UpgradeCertificate: upgradeCert,
		ViewChangeEvidence: evidence,
		NextDrbResult:      nextDrb,
	}
	if model.LeafFromProposal(p).ParentCommitment != parent.Commit() {
		return model.NewInconsistentCommitmentErrorf(view, "proposed leaf doesn't extend the leaf of the justify QC")
	}
	signed, err := model.SignQuorumProposal(p, t.config.PrivateKey)
	if err != nil {
		return err
	}

	c, release := t.consensus.Write()
	err = c.UpdateProposedView(signed)
	release()
	if err != nil {
		return err
	}
	t.log.Debug().
		Uint64("view", uint64(view)).
		Uint64("height", header.BlockNumber).
		Uint64("justify_qc_view", uint64(parentQC.View())).
		Msg("sending proposal")
	t.publisher.Publish(events.QuorumProposalSend{Proposal: signed, Sender: t.config.PublicKey})
	return nil
}

// waitForHighestQC waits until deadline for replicas to send their high
// QCs, and returns the highest of them and the own high QC, with the next
// epoch QC sent along.
func (t *Task) waitForHighestQC(ctx context.Context, deadline time.Time) (*model.QuorumCertificate2, *model.NextEpochQuorumCertificate2, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-timer.C:
	}

	c, release := t.consensus.Read()
	highest, next := c.HighQC(), c.NextEpochHighQC()
	release()
	if next != nil && next.Data.LeafCommit != highest.Data.LeafCommit {
		next = nil
	}

	t.mu.Lock()
	received := t.highestReceived
	t.mu.Unlock()
	if received != nil && received.qc.View() > highest.View() {
		t.log.Debug().
			Uint64("view", uint64(received.qc.View())).
			Uint64("high_qc_view", uint64(highest.View())).
			Msg("proposing on a higher QC received from a replica")
		return received.qc, received.next, nil
	}
	return highest, next, nil
}

// waitForParent returns the leaf parentQC certifies and its state, waiting
// until deadline for the leaf to be validated.
func (t *Task) waitForParent(ctx context.Context, parentQC *model.QuorumCertificate2, deadline time.Time) (*model.Leaf, state.ValidatedState, error) {
	var (
		parent      *model.Leaf
		parentState state.ValidatedState
	)
	found := t.await(ctx, deadline, func(c *state.Consensus, _ events.Event) bool {
		entry, ok := c.ViewEntry(parentQC.View())
		if !ok || entry.Kind != state.ViewLeaf {
			return false
		}
		leaf, ok := c.SavedLeaf(entry.Leaf)
		if !ok {
			return false
		}
		parent, parentState = leaf, entry.State
		return true
	})
	if !found {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("leaf of view %d certified by the justify QC is not known", parentQC.View())
	}
	if parent.Commit() != parentQC.Data.LeafCommit {
		return nil, nil, model.NewInconsistentCommitmentErrorf(parentQC.View(), "leaf of the view is not the one the justify QC certifies")
	}
	return parent, parentState, nil
}

// waitForNextEpochQC returns the next epoch QC for the leaf of qc, waiting
// until deadline for it to form. A QC sent along with qc is used first.
func (t *Task) waitForNextEpochQC(ctx context.Context, qc *model.QuorumCertificate2, received *model.NextEpochQuorumCertificate2, deadline time.Time) (*model.NextEpochQuorumCertificate2, error) {
	matches := func(next *model.NextEpochQuorumCertificate2) bool {
		return next != nil && next.View() == qc.View() && next.Data.LeafCommit == qc.Data.LeafCommit
	}
	if matches(received) {
		return received, nil
	}
	var found *model.NextEpochQuorumCertificate2
	ok := t.await(ctx, deadline, func(c *state.Consensus, ev events.Event) bool {
		// the event loop may cache a formed QC only after this handler saw it
		switch e := ev.(type) {
		case events.NextEpochQc2Formed:
			if matches(e.QC) {
				found = e.QC
				return true
			}
		case events.HighQcUpdated:
			if matches(e.NextEpochQC) {
				found = e.NextEpochQC
				return true
			}
		}
		if next := c.NextEpochHighQC(); matches(next) {
			found = next
			return true
		}
		t.mu.Lock()
		next, ok := t.formedNextEpochQCs.get(qc.View())
		t.mu.Unlock()
		if ok && matches(next) {
			found = next
			return true
		}
		return false
	})
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no next epoch QC for the transition QC of view %d", qc.View())
	}
	return found, nil
}

// await evaluates check against the consensus state until it holds or the
// deadline passes. check runs once without an event, then with every event
// published after that. Changes of the state a handler waits for are all
// announced on the bus.
func (t *Task) await(ctx context.Context, deadline time.Time, check func(c *state.Consensus, ev events.Event) bool) bool {
	// subscribe before the first check so no change in between goes unseen
	sub := t.sub.Clone()
	defer sub.Close()
	holds := func(ev events.Event) bool {
		c, release := t.consensus.Read()
		defer release()
		return check(c, ev)
	}
	if holds(nil) {
		return true
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return false
		}
		if holds(ev) {
			return true
		}
	}
}
