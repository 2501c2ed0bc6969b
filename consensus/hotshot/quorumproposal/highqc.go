package quorumproposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
)

// checkEqcAndStore installs the QC formed in view as high QC. A QC for an
// epoch transition block is only installed once the next epoch QC of the
// same leaf formed too, and then both are installed. Cached certificates of
// older views are only dropped once such a pair matched.
func (t *Task) checkEqcAndStore(ctx context.Context, view model.View) {
	qc, ok := t.formedQCs.get(view)
	if !ok {
		return
	}
	log := t.log.With().Uint64("view", uint64(view)).Logger()
	eh := t.config.EpochHeight

	bn, hasBlock := qc.Data.Block()
	if !hasBlock || !t.lock.EpochsEnabled(view) || !model.IsEpochTransition(bn, eh) {
		t.updateHighQC(ctx, qc, true)
		return
	}

	t.mu.Lock()
	next, ok := t.formedNextEpochQCs.get(view)
	t.mu.Unlock()
	if !ok {
		log.Debug().Uint64("height", bn).Msg("waiting for the next epoch QC of the transition block")
		return
	}
	if next.Data.LeafCommit != qc.Data.LeafCommit {
		log.Error().
			Hex("leaf_commit", qc.Data.LeafCommit[:]).
			Hex("next_epoch_leaf_commit", next.Data.LeafCommit[:]).
			Msg("QC and next epoch QC of the same view certify different leaves, this should never happen")
		return
	}
	t.pruneBelow(view)

	if model.IsTransitionBlock(bn, eh) {
		c, release := t.consensus.Write()
		c.UpdateTransitionQC(qc, next)
		release()
	}
	// storage can't restore a high QC from the middle of the transition
	persist := !model.IsMiddleTransitionBlock(bn, eh)
	t.updateHighQC(ctx, qc, persist)
	t.updateNextEpochHighQC(ctx, next, persist)
	t.handleEqcFormed(qc)
}

func (t *Task) pruneBelow(view model.View) {
	t.formedQCs.pruneBelow(view)
	t.mu.Lock()
	t.formedNextEpochQCs.pruneBelow(view)
	t.mu.Unlock()
}

func (t *Task) updateHighQC(ctx context.Context, qc *model.QuorumCertificate2, persist bool) {
	log := t.log.With().Uint64("view", uint64(qc.View())).Logger()
	c, release := t.consensus.Write()
	err := c.UpdateHighQC(qc)
	release()
	if errors.Is(err, state.ErrNotNewer) {
		log.Debug().Err(err).Msg("not installing high QC")
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

func (t *Task) updateNextEpochHighQC(ctx context.Context, qc *model.NextEpochQuorumCertificate2, persist bool) {
	log := t.log.With().Uint64("view", uint64(qc.View())).Logger()
	c, release := t.consensus.Write()
	err := c.UpdateNextEpochHighQC(qc)
	release()
	if errors.Is(err, state.ErrNotNewer) {
		log.Debug().Err(err).Msg("not installing next epoch high QC")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("could not install next epoch high QC")
		return
	}
	t.publisher.Publish(events.HighQcUpdated{NextEpochQC: qc})
	if !persist {
		return
	}
	if err := t.storage.UpdateNextEpochHighQC(ctx, qc); err != nil {
		log.Error().Err(err).Msg("could not persist next epoch high QC")
	}
}

// handleEqcFormed announces an extended QC once the high QC and the next
// epoch high QC both certify the last block of an epoch.
func (t *Task) handleEqcFormed(qc *model.QuorumCertificate2) {
	if !t.lock.EpochsEnabled(qc.View()) {
		return
	}
	c, release := t.consensus.Read()
	high, next := c.HighQC(), c.NextEpochHighQC()
	extended := c.IsQCFormingEqc(high)
	release()
	if !extended || high.Data.LeafCommit != qc.Data.LeafCommit || high.View() != next.View() {
		return
	}
	t.log.Info().Uint64("view", uint64(high.View())).Msg("extended QC formed")
	t.publisher.Publish(events.ExtendedQc2Formed{QC: high})
}

// validateHighQC checks a QC a replica sent as its high QC, with the next
// epoch QC it carries. With epochs the QC must name its block, and a QC for
// an epoch transition block needs a next epoch QC of the same data, valid
// against the next epoch's stake table.
func (t *Task) validateHighQC(ctx context.Context, qc *model.QuorumCertificate2, next *model.NextEpochQuorumCertificate2) error {
	m, err := t.memberships.StakeTableForEpoch(ctx, qc.Data.Epoch)
	if err != nil {
		return fmt.Errorf("no stake table for QC of view %d: %w", qc.View(), err)
	}
	var result *multierror.Error
	if err := qc.IsValidCert(m.StakeTable(), m.SuccessThreshold(), t.lock); err != nil {
		result = multierror.Append(result, err)
	}
	if !t.lock.EpochsEnabled(qc.View()) {
		return result.ErrorOrNil()
	}

	bn, ok := qc.Data.Block()
	if !ok {
		result = multierror.Append(result, model.NewInvalidCertificateErrorf("quorum", qc.View(), "QC carries no block number"))
		return result.ErrorOrNil()
	}
	if next == nil {
		if model.IsEpochTransition(bn, t.config.EpochHeight) {
			result = multierror.Append(result, model.NewInvalidCertificateErrorf("quorum", qc.View(), "QC for epoch transition block %d without next epoch QC", bn))
		}
		return result.ErrorOrNil()
	}

	if next.Data.Commit() != qc.Data.Commit() {
		result = multierror.Append(result, model.NewInconsistentCommitmentErrorf(qc.View(), "next epoch QC certifies different data"))
	}
	nm, err := m.NextEpochStakeTable(ctx)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("no next epoch stake table: %w", err))
		return result.ErrorOrNil()
	}
	if err := next.IsValidCert(nm.StakeTable(), nm.SuccessThreshold(), t.lock); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
