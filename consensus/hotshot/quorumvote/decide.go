package quorumvote

import (
	"context"
	"errors"

	"github.com/onflow/hotshot/consensus/hotshot/events"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
)

// traversalOutcome is what the decide rule concludes from one proposal.
type traversalOutcome struct {
	lockedView  model.View
	locked      bool
	decidedView model.View
	decided     bool
	decideQC    *model.QuorumCertificate2
	// newest first
	leaves      []*state.LeafInfo
	upgradeCert *model.UpgradeCertificate
}

// decideFromProposal2 applies the 2-chain commit rule of epoch versions: the
// proposal locks its parent, and decides its grandparent if the parent
// directly follows the grandparent.
func (t *Task) decideFromProposal2(c *state.Consensus, p *model.QuorumProposal2) traversalOutcome {
	var out traversalOutcome
	leaf := model.LeafFromProposal(p)
	out.lockedView, out.locked = p.JustifyQC.View(), true

	parent, ok := c.ParentLeafInfo(leaf, t.config.PublicKey)
	if !ok {
		return out
	}
	grandparent, ok := c.ParentLeafInfo(parent.Leaf, t.config.PublicKey)
	if !ok {
		return out
	}
	if grandparent.Leaf.View()+1 != parent.Leaf.View() {
		return out
	}
	out.decideQC = parent.Leaf.Justify
	out.decidedView, out.decided = grandparent.Leaf.View(), true

	oldAnchor := c.LastDecidedView()
	existing := t.lock.DecidedUpgradeCertificate()
	for info := grandparent; info != nil && info.Leaf.View() > oldAnchor; {
		t.checkDecidedUpgrade(&out, info.Leaf, existing, out.decidedView)
		out.leaves = append(out.leaves, info)
		next, ok := c.ParentLeafInfo(info.Leaf, t.config.PublicKey)
		if !ok {
			break
		}
		info = next
	}
	return out
}

// decideFromProposal applies the 3-chain commit rule of pre-epoch versions
// by walking back from the proposal's parent over consecutive views.
func (t *Task) decideFromProposal(c *state.Consensus, p *model.QuorumProposal2) traversalOutcome {
	var out traversalOutcome
	view := p.View()
	oldAnchor := c.LastDecidedView()
	existing := t.lock.DecidedUpgradeCertificate()
	eh := t.config.EpochHeight

	lastVisited := view
	chain := 0
	err := c.VisitLeafAncestors(p.JustifyQC.View(), state.StopBefore(oldAnchor), true, func(leaf *model.Leaf, s state.ValidatedState, delta state.StateDelta) bool {
		if !out.decided {
			if lastVisited != leaf.View()+1 {
				return false
			}
			lastVisited = leaf.View()
			chain++
			switch chain {
			case 2:
				out.lockedView, out.locked = leaf.View(), true
				out.decideQC = leaf.Justify
			case 3:
				out.decidedView, out.decided = leaf.View(), true
			}
		}
		if !out.decided {
			return true
		}

		t.checkDecidedUpgrade(&out, leaf, existing, view)
		info := &state.LeafInfo{Leaf: leaf, State: s, Delta: delta}
		if share, ok := c.VidShare(leaf.View(), t.config.PublicKey, leaf.Epoch(eh)); ok {
			info.VidShare = share.Data
		}
		if cert := c.StateCert(); leaf.WithEpoch && model.IsEpochRoot(leaf.Height(), eh) && cert != nil && cert.View() == leaf.View() {
			info.StateCert = cert
		}
		out.leaves = append(out.leaves, info)
		return true
	})
	if err != nil {
		t.log.Debug().Err(err).Uint64("view", uint64(view)).Msg("leaf chain ends before the anchor")
	}
	return out
}

// checkDecidedUpgrade records the upgrade certificate of a decided leaf
// unless it is already decided or its deadline passed before view.
func (t *Task) checkDecidedUpgrade(out *traversalOutcome, leaf *model.Leaf, existing *model.UpgradeCertificate, view model.View) {
	cert := leaf.UpgradeCertificate
	if cert == nil || (existing != nil && existing.Commit() == cert.Commit()) {
		return
	}
	if cert.Data.DecideBy < view {
		t.log.Warn().
			Uint64("decide_by", uint64(cert.Data.DecideBy)).
			Uint64("view", uint64(view)).
			Msg("upgrade certificate was not decided in time, ignoring it")
		return
	}
	t.log.Info().
		Str("new_version", cert.Data.NewVersion.String()).
		Uint64("new_version_first_view", uint64(cert.Data.NewVersionFirstView)).
		Msg("reached decide on upgrade certificate")
	out.upgradeCert = cert
}

// decide applies the commit rule of the proposal's version and installs
// what it decides.
func (t *Task) decide(ctx context.Context, proposal *model.SignedQuorumProposal) error {
	p := proposal.Data
	version, err := t.lock.Version(p.View())
	if err != nil {
		return err
	}
	epochs := version.AtLeast(model.EpochVersion)

	var out traversalOutcome
	c, release := t.consensus.Read()
	switch {
	case !epochs:
		out = t.decideFromProposal(c, p)
	case !model.IsLastBlock(p.BlockHeader.BlockNumber, t.config.EpochHeight):
		// the last block of an epoch never decides, so that the block two
		// before it isn't decided ahead of the new epoch
		out = t.decideFromProposal2(c, p)
	}
	release()

	if out.upgradeCert != nil && out.decided {
		t.installUpgrade(ctx, out.upgradeCert, p.BlockHeader.BlockNumber)
	}

	c, release = t.consensus.Write()
	if out.locked {
		if err := c.UpdateLockedView(out.lockedView); err != nil && !errors.Is(err, state.ErrNotNewer) {
			release()
			return err
		}
	}
	if !out.decided {
		release()
		return nil
	}
	c.CollectGarbage(c.LastDecidedView(), out.decidedView)
	err = c.UpdateLastDecidedView(out.decidedView)
	release()
	if err != nil {
		t.log.Warn().Err(err).Msg("decided view didn't advance, this should never happen")
		return err
	}

	leaves := make([]*model.Leaf, 0, len(out.leaves))
	for _, info := range out.leaves {
		t.log.Info().
			Uint64("view", uint64(info.Leaf.View())).
			Uint64("height", info.Leaf.Height()).
			Msg("leaf decided")
		leaves = append(leaves, info.Leaf)
	}
	t.publisher.Publish(events.LeavesDecided{Leaves: leaves, QC: out.decideQC})
	t.metrics.SetDecidedView(uint64(out.decidedView))
	if len(leaves) > 0 {
		if err := t.storage.UpdateAnchorLeaf(ctx, leaves[0], out.decideQC); err != nil {
			t.log.Error().Err(err).Uint64("view", uint64(leaves[0].View())).Msg("could not persist anchor leaf")
		}
	}

	if epochs {
		for _, leaf := range leaves {
			t.storeDrbResult(ctx, leaf)
			t.decideEpochRoot(ctx, leaf)
		}
	}
	return nil
}

// installUpgrade makes a decided upgrade certificate effective. An upgrade
// that enables epochs sets the first epoch to the one of the deciding block.
func (t *Task) installUpgrade(ctx context.Context, cert *model.UpgradeCertificate, blockNumber uint64) {
	enablesEpochs := cert.Data.NewVersion.AtLeast(model.EpochVersion) && !t.lock.EpochsEnabled(model.GenesisView)
	t.lock.SetDecidedUpgradeCertificate(cert)
	if enablesEpochs {
		first := model.EpochFromBlockNumber(blockNumber, t.config.EpochHeight)
		t.log.Info().Uint64("first_epoch", uint64(first)).Msg("epochs enabled by upgrade")
		t.memberships.Membership().SetFirstEpoch(first, model.InitialDrbResult)
		t.publisher.Publish(events.SetFirstEpoch{View: cert.Data.NewVersionFirstView, Epoch: first})
	}
	if err := t.storage.UpdateDecidedUpgradeCertificate(ctx, cert); err != nil {
		t.log.Error().Err(err).Msg("could not persist decided upgrade certificate")
	}
}

// storeDrbResult installs the DRB result carried by a decided transition
// block for the next epoch.
func (t *Task) storeDrbResult(ctx context.Context, leaf *model.Leaf) {
	eh := t.config.EpochHeight
	if eh == 0 || !model.IsTransitionBlock(leaf.Height(), eh) {
		return
	}
	if leaf.NextDrbResult == nil {
		t.log.Warn().Uint64("height", leaf.Height()).Msg("decided transition block carries no DRB result")
		return
	}
	t.installDrbResult(ctx, model.EpochFromBlockNumber(leaf.Height(), eh).Next(), *leaf.NextDrbResult)
}

func (t *Task) installDrbResult(ctx context.Context, epoch model.Epoch, result model.DrbResult) {
	c, release := t.consensus.Write()
	c.UpdateDrbResult(epoch, result)
	release()
	if err := t.storage.StoreDrbResult(ctx, epoch, result); err != nil {
		t.log.Error().Err(err).Uint64("epoch", uint64(epoch)).Msg("could not persist DRB result")
	}
	t.memberships.Membership().AddDrbResult(epoch, result)
}

// decideEpochRoot installs a decided epoch root as the stake table root of
// the epoch after next, and computes that epoch's DRB result in the
// background.
func (t *Task) decideEpochRoot(ctx context.Context, leaf *model.Leaf) {
	eh := t.config.EpochHeight
	if eh == 0 || !model.IsEpochRoot(leaf.Height(), eh) {
		return
	}
	epoch := model.EpochFromBlockNumber(leaf.Height(), eh) + 2
	log := t.log.With().Uint64("epoch", uint64(epoch)).Logger()

	if err := t.storage.StoreEpochRoot(ctx, epoch, leaf.BlockHeader); err != nil {
		log.Error().Err(err).Msg("could not persist epoch root")
	}
	if err := t.memberships.Membership().AddEpochRoot(ctx, epoch, leaf.BlockHeader); err != nil {
		log.Error().Err(err).Msg("could not add epoch root")
	}

	t.background.Add(1)
	go func() {
		defer t.background.Done()
		result, err := t.memberships.ComputeDrbFromRoot(ctx, epoch, leaf)
		if err != nil {
			log.Warn().Err(err).Msg("could not compute DRB result")
			return
		}
		t.installDrbResult(ctx, epoch, result)
	}()
}
