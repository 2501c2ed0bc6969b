package state

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// RestoreConfig is what Restore needs beyond the persisted state.
type RestoreConfig struct {
	// Genesis anchors the chain when nothing was decided yet.
	Genesis *model.Leaf
	// AnchorState is the application state of the anchor leaf.
	AnchorState          ValidatedState
	EpochHeight          uint64
	DrbDifficulty        uint64
	DrbUpgradeDifficulty uint64
	// UpgradeLock receives the decided upgrade certificate, if any.
	UpgradeLock *model.UpgradeLock
}

// Restore rebuilds the consensus state from storage after a restart. The
// anchor leaf is the last decided leaf; proposals stored for later views are
// restored as undecided leaves without state. The replica won't act again in
// any view up to the newest stored proposal, which it may have voted for.
func Restore(ctx context.Context, log zerolog.Logger, storage hotshot.Storage, cfg RestoreConfig) (*Consensus, error) {
	anchor, anchorQC, err := storage.LoadAnchorLeaf(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load anchor leaf: %w", err)
	}
	if anchor == nil {
		anchor = cfg.Genesis
	}
	if anchorQC == nil {
		anchorQC = model.GenesisQuorumCertificate(anchor.Commit())
	}

	highQC, err := storage.LoadHighQC(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load high QC: %w", err)
	}
	if highQC == nil || highQC.View() < anchorQC.View() {
		highQC = anchorQC
	}
	nextEpochHighQC, err := storage.LoadNextEpochHighQC(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load next epoch high QC: %w", err)
	}
	stateCert, err := storage.LoadStateCert(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load state certificate: %w", err)
	}
	upgradeCert, err := storage.LoadUpgradeCertificate(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load upgrade certificate: %w", err)
	}
	proposals, err := storage.LoadQuorumProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load quorum proposals: %w", err)
	}
	drbResults, err := storage.LoadDrbResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load DRB results: %w", err)
	}

	anchorView := anchor.View()
	anchorEpoch := anchor.Epoch(cfg.EpochHeight)
	stateMap := map[model.View]ViewEntry{
		anchorView: {Kind: ViewLeaf, Epoch: anchorEpoch, Leaf: anchor.Commit(), State: cfg.AnchorState},
	}
	leaves := map[model.Commitment]*model.Leaf{anchor.Commit(): anchor}
	lastActioned := anchorView
	for view, p := range proposals {
		if view > lastActioned {
			lastActioned = view
		}
		if view <= anchorView {
			continue
		}
		leaf := model.LeafFromProposal(p.Data)
		leaves[leaf.Commit()] = leaf
		stateMap[view] = ViewEntry{Kind: ViewLeaf, Epoch: leaf.Epoch(cfg.EpochHeight), Leaf: leaf.Commit()}
	}

	curView := anchorView
	if highQC.View() > curView {
		curView = highQC.View()
	}

	c := New(log, Params{
		ValidatedStateMap:    stateMap,
		CurView:              curView,
		CurEpoch:             anchorEpoch,
		LockedView:           anchorView,
		LastDecidedView:      anchorView,
		LastActionedView:     lastActioned,
		SavedLeaves:          leaves,
		HighQC:               highQC,
		NextEpochHighQC:      nextEpochHighQC,
		EpochHeight:          cfg.EpochHeight,
		StateCert:            stateCert,
		DrbDifficulty:        cfg.DrbDifficulty,
		DrbUpgradeDifficulty: cfg.DrbUpgradeDifficulty,
	})
	for epoch, result := range drbResults {
		c.UpdateDrbResult(epoch, result)
	}
	if upgradeCert != nil && cfg.UpgradeLock != nil {
		cfg.UpgradeLock.SetDecidedUpgradeCertificate(upgradeCert)
	}

	log.Info().
		Uint64("anchor_view", uint64(anchorView)).
		Uint64("high_qc_view", uint64(highQC.View())).
		Int("undecided_leaves", len(leaves)-1).
		Msg("consensus state restored")
	return c, nil
}
