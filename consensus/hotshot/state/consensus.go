// Package state holds the replica's view of the chain that the consensus
// tasks share: validated leaves, the high QCs, the lock and the last decided
// view, received VID shares and DA certificates.
package state

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

var (
	// ErrNotNewer is returned by updates carrying a value that is not newer
	// than the one held.
	ErrNotNewer = errors.New("not newer than the current value")
	// ErrAlreadyExists is returned when an entry that can't be replaced
	// already exists.
	ErrAlreadyExists = errors.New("entry already exists")
	// ErrMissingLeaf is returned by walks over ancestors that reach a leaf
	// this replica doesn't hold.
	ErrMissingLeaf = errors.New("missing leaf")
	// ErrInconsistentState is returned when the state map and the saved
	// leaves disagree.
	ErrInconsistentState = errors.New("inconsistent consensus state")
	// ErrNotTransitionQC is returned when a QC pair can't replace the high
	// QCs because it doesn't certify an epoch transition block.
	ErrNotTransitionQC = errors.New("not a transition QC")
)

// VidShares holds VID shares by view, recipient and target epoch.
type VidShares map[model.View]map[signature.PublicKey]map[model.Epoch]*model.SignedVidShare

// TransitionQC is the QC pair over the newest epoch transition block.
type TransitionQC struct {
	QC          *model.QuorumCertificate2
	NextEpochQC *model.NextEpochQuorumCertificate2
}

// Params is the initial content of a Consensus. Nil maps start empty.
type Params struct {
	ValidatedStateMap    map[model.View]ViewEntry
	VidShares            VidShares
	CurView              model.View
	CurEpoch             model.Epoch
	LockedView           model.View
	LastDecidedView      model.View
	LastActionedView     model.View
	LastProposals        map[model.View]*model.SignedQuorumProposal
	SavedLeaves          map[model.Commitment]*model.Leaf
	SavedPayloads        map[model.View]*PayloadWithMetadata
	HighQC               *model.QuorumCertificate2
	NextEpochHighQC      *model.NextEpochQuorumCertificate2
	EpochHeight          uint64
	StateCert            *model.LightClientStateUpdateCertificate
	DrbDifficulty        uint64
	DrbUpgradeDifficulty uint64
}

// Consensus is the state shared by the consensus tasks. It is not safe for
// concurrent use; tasks share it through OuterConsensus.
type Consensus struct {
	log zerolog.Logger

	validatedStateMap map[model.View]ViewEntry
	vidShares         VidShares
	savedDaCerts      map[model.View]*model.DaCertificate2
	savedLeaves       map[model.Commitment]*model.Leaf
	savedPayloads     map[model.View]*PayloadWithMetadata
	lastProposals     map[model.View]*model.SignedQuorumProposal

	curView         model.View
	curEpoch        model.Epoch
	lastDecidedView model.View
	lockedView      model.View
	lastActions     actionViews
	highestBlock    uint64

	highQC          *model.QuorumCertificate2
	nextEpochHighQC *model.NextEpochQuorumCertificate2
	transitionQC    *TransitionQC
	stateCert       *model.LightClientStateUpdateCertificate

	participation *participation
	drbResults    *DrbResults

	epochHeight          uint64
	drbDifficulty        uint64
	drbUpgradeDifficulty uint64
}

func New(log zerolog.Logger, p Params) *Consensus {
	c := &Consensus{
		log:                  log.With().Str("component", "consensus_state").Logger(),
		validatedStateMap:    p.ValidatedStateMap,
		vidShares:            p.VidShares,
		savedDaCerts:         make(map[model.View]*model.DaCertificate2),
		savedLeaves:          p.SavedLeaves,
		savedPayloads:        p.SavedPayloads,
		lastProposals:        p.LastProposals,
		curView:              p.CurView,
		curEpoch:             p.CurEpoch,
		lastDecidedView:      p.LastDecidedView,
		lockedView:           p.LockedView,
		lastActions:          actionViewsFrom(p.LastActionedView),
		highQC:               p.HighQC,
		nextEpochHighQC:      p.NextEpochHighQC,
		stateCert:            p.StateCert,
		participation:        newParticipation(),
		drbResults:           NewDrbResults(),
		epochHeight:          p.EpochHeight,
		drbDifficulty:        p.DrbDifficulty,
		drbUpgradeDifficulty: p.DrbUpgradeDifficulty,
	}
	if c.validatedStateMap == nil {
		c.validatedStateMap = make(map[model.View]ViewEntry)
	}
	if c.vidShares == nil {
		c.vidShares = make(VidShares)
	}
	if c.savedLeaves == nil {
		c.savedLeaves = make(map[model.Commitment]*model.Leaf)
	}
	if c.savedPayloads == nil {
		c.savedPayloads = make(map[model.View]*PayloadWithMetadata)
	}
	if c.lastProposals == nil {
		c.lastProposals = make(map[model.View]*model.SignedQuorumProposal)
	}

	// a restored next epoch high QC pairs with the high QC when both
	// certify the same transition block
	if c.nextEpochHighQC != nil && c.highQC != nil && c.isTransitionQC(c.highQC) {
		if c.highQC.Data.LeafCommit == c.nextEpochHighQC.Data.LeafCommit {
			c.transitionQC = &TransitionQC{QC: c.highQC, NextEpochQC: c.nextEpochHighQC}
		} else {
			c.log.Error().
				Uint64("view", uint64(c.highQC.View())).
				Msg("next epoch high QC certifies a different leaf than the high QC")
		}
	}
	return c
}

func (c *Consensus) CurView() model.View { return c.curView }

// CurEpoch returns the current epoch, NoEpoch before epochs.
func (c *Consensus) CurEpoch() model.Epoch { return c.curEpoch }

func (c *Consensus) LastDecidedView() model.View { return c.lastDecidedView }

func (c *Consensus) LockedView() model.View { return c.lockedView }

func (c *Consensus) HighQC() *model.QuorumCertificate2 { return c.highQC }

// NextEpochHighQC returns nil if no next epoch QC was formed yet.
func (c *Consensus) NextEpochHighQC() *model.NextEpochQuorumCertificate2 { return c.nextEpochHighQC }

// TransitionQC returns nil before the first epoch transition.
func (c *Consensus) TransitionQC() *TransitionQC { return c.transitionQC }

func (c *Consensus) StateCert() *model.LightClientStateUpdateCertificate { return c.stateCert }

func (c *Consensus) HighestBlock() uint64 { return c.highestBlock }

func (c *Consensus) EpochHeight() uint64 { return c.epochHeight }

func (c *Consensus) DrbDifficulty() uint64 { return c.drbDifficulty }

func (c *Consensus) DrbUpgradeDifficulty() uint64 { return c.drbUpgradeDifficulty }

func (c *Consensus) DrbResults() *DrbResults { return c.drbResults }

func (c *Consensus) ViewEntry(view model.View) (ViewEntry, bool) {
	e, ok := c.validatedStateMap[view]
	return e, ok
}

// Views returns the views of the state map, ascending.
func (c *Consensus) Views() []model.View {
	views := maps.Keys(c.validatedStateMap)
	slices.Sort(views)
	return views
}

func (c *Consensus) SavedLeaf(commit model.Commitment) (*model.Leaf, bool) {
	l, ok := c.savedLeaves[commit]
	return l, ok
}

func (c *Consensus) SavedPayload(view model.View) (*PayloadWithMetadata, bool) {
	p, ok := c.savedPayloads[view]
	return p, ok
}

func (c *Consensus) SavedDaCert(view model.View) (*model.DaCertificate2, bool) {
	cert, ok := c.savedDaCerts[view]
	return cert, ok
}

// VidShare returns the share of the recipient for the view, dispersed for
// the target epoch.
func (c *Consensus) VidShare(view model.View, recipient signature.PublicKey, target model.Epoch) (*model.SignedVidShare, bool) {
	s, ok := c.vidShares[view][recipient][target]
	return s, ok
}

func (c *Consensus) LastProposal(view model.View) (*model.SignedQuorumProposal, bool) {
	p, ok := c.lastProposals[view]
	return p, ok
}

// UpdateView sets the current view.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if view is not above the current view
func (c *Consensus) UpdateView(view model.View) error {
	if view <= c.curView {
		return fmt.Errorf("view %d, current %d: %w", view, c.curView, ErrNotNewer)
	}
	c.curView = view
	return nil
}

// UpdateEpoch sets the current epoch.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if an epoch is set and epoch is not above it
func (c *Consensus) UpdateEpoch(epoch model.Epoch) error {
	if c.curEpoch.IsSome() && epoch <= c.curEpoch {
		return fmt.Errorf("epoch %v, current %v: %w", epoch, c.curEpoch, ErrNotNewer)
	}
	c.curEpoch = epoch
	return nil
}

// UpdateAction records that the replica performs action in view. It reports
// false if the replica already performed it in this or a later view. DA
// votes and untracked actions are always allowed: the DA leader of view v+1
// may reach the replica before the one of view v.
func (c *Consensus) UpdateAction(action Action, view model.View) bool {
	var last *model.View
	switch action {
	case ActionVote:
		last = &c.lastActions.voted
	case ActionPropose:
		last = &c.lastActions.proposed
	case ActionDaPropose:
		last = &c.lastActions.daProposed
	case ActionDaVote:
		if view > c.lastActions.daVoted {
			c.lastActions.daVoted = view
		}
		return true
	default:
		return true
	}
	if view <= *last {
		return false
	}
	*last = view
	return true
}

// ResetActions forgets all recorded actions.
func (c *Consensus) ResetActions() {
	c.lastActions = actionViews{}
}

// UpdateProposedView records a proposal the replica sent.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if the replica already proposed in this or a later view
func (c *Consensus) UpdateProposedView(proposal *model.SignedQuorumProposal) error {
	latest := model.GenesisView
	for v := range c.lastProposals {
		if v > latest {
			latest = v
		}
	}
	view := proposal.Data.View()
	if view <= latest {
		return fmt.Errorf("proposal for view %d, last proposed %d: %w", view, latest, ErrNotNewer)
	}
	c.lastProposals[view] = proposal
	return nil
}

// UpdateLastDecidedView sets the last decided view.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if view is not above the last decided view
func (c *Consensus) UpdateLastDecidedView(view model.View) error {
	if view <= c.lastDecidedView {
		return fmt.Errorf("decided view %d, current %d: %w", view, c.lastDecidedView, ErrNotNewer)
	}
	c.lastDecidedView = view
	return nil
}

// UpdateLockedView sets the locked view.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if view is not above the locked view
func (c *Consensus) UpdateLockedView(view model.View) error {
	if view <= c.lockedView {
		return fmt.Errorf("locked view %d, current %d: %w", view, c.lockedView, ErrNotNewer)
	}
	c.lockedView = view
	return nil
}

// UpdateHighestBlock raises the highest seen block number. A lower block of
// an epoch transition replaces it when it isn't from an older epoch, so the
// repeated last block of an epoch is tracked.
func (c *Consensus) UpdateHighestBlock(blockNumber uint64) {
	if blockNumber > c.highestBlock {
		c.highestBlock = blockNumber
		return
	}
	if model.IsEpochTransition(blockNumber, c.epochHeight) {
		newEpoch := model.EpochFromBlockNumber(blockNumber, c.epochHeight)
		highEpoch := model.EpochFromBlockNumber(c.highestBlock, c.epochHeight)
		if newEpoch >= highEpoch {
			c.highestBlock = blockNumber
		}
	}
}

// UpdateTransitionQC replaces the transition QC pair with a newer one.
// Pairs certifying different leaves are dropped.
func (c *Consensus) UpdateTransitionQC(qc *model.QuorumCertificate2, nextEpochQC *model.NextEpochQuorumCertificate2) {
	if qc.Data.LeafCommit != nextEpochQC.Data.LeafCommit {
		c.log.Error().
			Uint64("view", uint64(qc.View())).
			Hex("leaf_commit", qc.Data.LeafCommit[:]).
			Hex("next_epoch_leaf_commit", nextEpochQC.Data.LeafCommit[:]).
			Msg("transition QC pair certifies different leaves")
		return
	}
	if c.transitionQC != nil && c.transitionQC.QC.View() >= qc.View() {
		return
	}
	c.transitionQC = &TransitionQC{QC: qc, NextEpochQC: nextEpochQC}
}

// UpdateDaView records the payload commitment certified for view.
//
// Expected error returns during normal operations:
//   - ErrAlreadyExists if the view already holds a leaf
func (c *Consensus) UpdateDaView(view model.View, epoch model.Epoch, payloadCommitment model.VidCommitment) error {
	return c.updateValidatedStateMap(view, ViewEntry{
		Kind:              ViewDa,
		Epoch:             epoch,
		PayloadCommitment: payloadCommitment,
	})
}

// UpdateLeaf records a validated leaf with its state and delta.
//
// Expected error returns during normal operations:
//   - ErrAlreadyExists if the view holds a leaf with a delta and delta is nil
func (c *Consensus) UpdateLeaf(leaf *model.Leaf, state ValidatedState, delta StateDelta) error {
	err := c.updateValidatedStateMap(leaf.View(), ViewEntry{
		Kind:  ViewLeaf,
		Epoch: leaf.Epoch(c.epochHeight),
		Leaf:  leaf.Commit(),
		State: state,
		Delta: delta,
	})
	if err != nil {
		return err
	}
	c.savedLeaves[leaf.Commit()] = leaf
	return nil
}

// updateValidatedStateMap never lets an entry replace one carrying more
// information: a leaf isn't replaced by a DA entry, a leaf with a delta
// isn't replaced by one without.
func (c *Consensus) updateValidatedStateMap(view model.View, entry ViewEntry) error {
	if existing, ok := c.validatedStateMap[view]; ok && existing.Kind == ViewLeaf {
		if entry.Kind != ViewLeaf {
			return fmt.Errorf("view %d holds a leaf, not replacing it with a %v entry: %w", view, entry.Kind, ErrAlreadyExists)
		}
		if entry.Delta == nil && existing.Delta != nil {
			return fmt.Errorf("view %d holds a leaf with a state delta: %w", view, ErrAlreadyExists)
		}
	}
	c.validatedStateMap[view] = entry
	return nil
}

// UpdateSavedPayloads stores the payload of view.
//
// Expected error returns during normal operations:
//   - ErrAlreadyExists if the view already has a payload
func (c *Consensus) UpdateSavedPayloads(view model.View, payload *PayloadWithMetadata) error {
	if _, ok := c.savedPayloads[view]; ok {
		return fmt.Errorf("payload for view %d: %w", view, ErrAlreadyExists)
	}
	c.savedPayloads[view] = payload
	return nil
}

// UpdateHighQC replaces the high QC with a QC of a higher view. Installing
// the current high QC again succeeds.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if qc is not the current high QC and not of a higher view
func (c *Consensus) UpdateHighQC(qc *model.QuorumCertificate2) error {
	if c.highQC != nil && c.highQC.Commit() == qc.Commit() {
		return nil
	}
	if c.highQC != nil && qc.View() <= c.highQC.View() {
		return fmt.Errorf("high QC of view %d exists, got view %d: %w", c.highQC.View(), qc.View(), ErrNotNewer)
	}
	c.log.Debug().Uint64("view", uint64(qc.View())).Msg("updating high QC")
	c.highQC = qc
	return nil
}

// UpdateNextEpochHighQC is UpdateHighQC for the next epoch high QC.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if qc is not the current one and not of a higher view
func (c *Consensus) UpdateNextEpochHighQC(qc *model.NextEpochQuorumCertificate2) error {
	if c.nextEpochHighQC == nil {
		c.nextEpochHighQC = qc
		return nil
	}
	if c.nextEpochHighQC.Commit() == qc.Commit() {
		return nil
	}
	if qc.View() <= c.nextEpochHighQC.View() {
		return fmt.Errorf("next epoch high QC of view %d exists, got view %d: %w", c.nextEpochHighQC.View(), qc.View(), ErrNotNewer)
	}
	c.log.Debug().Uint64("view", uint64(qc.View())).Msg("updating next epoch high QC")
	c.nextEpochHighQC = qc
	return nil
}

// ResetHighQC sets both high QCs to the pair certifying a transition block.
// The pair may be older than the current high QC, but must be of the same
// upcoming epoch.
//
// Expected error returns during normal operations:
//   - InconsistentCommitmentError if the two QCs certify different leaves
//   - ErrNotTransitionQC if qc doesn't certify a transition block of the
//     epoch transition the high QC is in
func (c *Consensus) ResetHighQC(qc *model.QuorumCertificate2, nextEpochQC *model.NextEpochQuorumCertificate2) error {
	if qc.Data.LeafCommit != nextEpochQC.Data.LeafCommit {
		return model.NewInconsistentCommitmentErrorf(qc.View(), "high QC and next epoch QC certify different leaves")
	}
	if c.highQC != nil && c.highQC.Commit() == qc.Commit() {
		return nil
	}
	bn, ok := qc.Data.Block()
	sameEpoch := false
	if ok && c.highQC != nil {
		if highBn, ok := c.highQC.Data.Block(); ok {
			sameEpoch = model.EpochFromBlockNumber(bn+1, c.epochHeight) == model.EpochFromBlockNumber(highBn+1, c.epochHeight)
		}
	}
	if !ok || !model.IsTransitionBlock(bn, c.epochHeight) || !sameEpoch {
		return fmt.Errorf("QC of view %d: %w", qc.View(), ErrNotTransitionQC)
	}
	c.log.Debug().Uint64("view", uint64(qc.View())).Msg("resetting high QC and next epoch high QC")
	c.highQC = qc
	c.nextEpochHighQC = nextEpochQC
	return nil
}

// UpdateStateCert replaces the light client state certificate with one of a
// later epoch.
//
// Expected error returns during normal operations:
//   - ErrNotNewer if the held certificate's epoch is not below cert's
func (c *Consensus) UpdateStateCert(cert *model.LightClientStateUpdateCertificate) error {
	if c.stateCert != nil && cert.Epoch <= c.stateCert.Epoch {
		return fmt.Errorf("state certificate of epoch %v exists, got epoch %v: %w", c.stateCert.Epoch, cert.Epoch, ErrNotNewer)
	}
	c.stateCert = cert
	return nil
}

func (c *Consensus) UpdateVidShares(view model.View, share *model.SignedVidShare) {
	byKey, ok := c.vidShares[view]
	if !ok {
		byKey = make(map[signature.PublicKey]map[model.Epoch]*model.SignedVidShare)
		c.vidShares[view] = byKey
	}
	byEpoch, ok := byKey[share.Data.RecipientKey]
	if !ok {
		byEpoch = make(map[model.Epoch]*model.SignedVidShare)
		byKey[share.Data.RecipientKey] = byEpoch
	}
	byEpoch[share.Data.TargetEpoch] = share
}

func (c *Consensus) UpdateSavedDaCerts(view model.View, cert *model.DaCertificate2) {
	c.savedDaCerts[view] = cert
}

func (c *Consensus) UpdateDrbResult(epoch model.Epoch, result model.DrbResult) {
	c.drbResults.Store(epoch, result)
}

// UpdateValidatorParticipation records whether the leader of a view of the
// current epoch proposed.
func (c *Consensus) UpdateValidatorParticipation(leader signature.PublicKey, epoch model.Epoch, proposed bool) {
	c.participation.update(leader, epoch, proposed)
}

// UpdateValidatorParticipationEpoch moves participation tracking to epoch.
func (c *Consensus) UpdateValidatorParticipationEpoch(epoch model.Epoch) {
	c.participation.advance(epoch)
}

// ValidatorParticipation returns the share of views the key led in which it
// proposed, for the current epoch and, if it led any, the previous one.
func (c *Consensus) ValidatorParticipation(key signature.PublicKey) (current float64, previous float64, hasPrevious bool) {
	current = c.participation.current[key].ratio()
	r, ok := c.participation.previous[key]
	return current, r.ratio(), ok
}

func (c *Consensus) CurrentProposalParticipation() map[signature.PublicKey]float64 {
	return ratios(c.participation.current)
}

func (c *Consensus) PreviousProposalParticipation() map[signature.PublicKey]float64 {
	return ratios(c.participation.previous)
}

// VisitLeafAncestors walks the chain of leaves from the leaf of view
// startFrom towards genesis, calling f on each until it returns false or the
// terminator is reached. Reaching the terminator is an error unless
// okWhenFinished is set.
//
// Expected error returns during normal operations:
//   - ErrInconsistentState if startFrom has no leaf or a visited leaf has no state
//   - ErrMissingLeaf if the walk reaches a leaf this replica doesn't hold
func (c *Consensus) VisitLeafAncestors(startFrom model.View, terminator Terminator, okWhenFinished bool, f func(leaf *model.Leaf, state ValidatedState, delta StateDelta) bool) error {
	entry, ok := c.validatedStateMap[startFrom]
	if !ok {
		return fmt.Errorf("view %d is not in the state map: %w", startFrom, ErrInconsistentState)
	}
	next, ok := entry.LeafCommitment()
	if !ok {
		return fmt.Errorf("view %d has no leaf: %w", startFrom, ErrInconsistentState)
	}

	for {
		leaf, ok := c.savedLeaves[next]
		if !ok {
			break
		}
		view := leaf.View()
		state, delta, ok := c.StateAndDelta(view)
		if !ok {
			return fmt.Errorf("view %d has no state: %w", view, ErrInconsistentState)
		}
		if !terminator.Inclusive && terminator.View == view {
			if okWhenFinished {
				return nil
			}
			break
		}
		next = leaf.ParentCommitment
		if !f(leaf, state, delta) {
			return nil
		}
		if terminator.Inclusive && terminator.View == view {
			if okWhenFinished {
				return nil
			}
			break
		}
	}
	return fmt.Errorf("leaf %v: %w", next, ErrMissingLeaf)
}

// CollectGarbage drops everything below the view before the new anchor, and
// DA certificates below the old anchor.
func (c *Consensus) CollectGarbage(oldAnchor, newAnchor model.View) {
	if newAnchor <= oldAnchor {
		return
	}
	gcView := newAnchor.Prev()
	views := c.Views()
	if len(views) > 0 && views[0] != oldAnchor.Prev() {
		c.log.Info().
			Uint64("oldest_view", uint64(views[0])).
			Uint64("old_anchor", uint64(oldAnchor)).
			Msg("state map holds views older than the previous anchor")
	}

	for view := range c.savedDaCerts {
		if view < oldAnchor {
			delete(c.savedDaCerts, view)
		}
	}
	for _, view := range views {
		if view >= gcView {
			break
		}
		if leaf, ok := c.validatedStateMap[view].LeafCommitment(); ok {
			delete(c.savedLeaves, leaf)
		}
		delete(c.validatedStateMap, view)
	}
	for view := range c.savedPayloads {
		if view < gcView {
			delete(c.savedPayloads, view)
		}
	}
	for view := range c.vidShares {
		if view < gcView {
			delete(c.vidShares, view)
		}
	}
	for view := range c.lastProposals {
		if view < gcView {
			delete(c.lastProposals, view)
		}
	}
}

// DecidedLeaf returns the leaf of the last decided view.
//
// Expected error returns during normal operations:
//   - ErrInconsistentState if the decided leaf is not held
func (c *Consensus) DecidedLeaf() (*model.Leaf, error) {
	entry, ok := c.validatedStateMap[c.lastDecidedView]
	if !ok {
		return nil, fmt.Errorf("decided view %d is not in the state map: %w", c.lastDecidedView, ErrInconsistentState)
	}
	commit, ok := entry.LeafCommitment()
	if !ok {
		return nil, fmt.Errorf("decided view %d has no leaf: %w", c.lastDecidedView, ErrInconsistentState)
	}
	leaf, ok := c.savedLeaves[commit]
	if !ok {
		return nil, fmt.Errorf("decided leaf %v: %w", commit, ErrInconsistentState)
	}
	return leaf, nil
}

// DecidedState returns the state of the last decided view.
//
// Expected error returns during normal operations:
//   - ErrInconsistentState if the decided view has no state
func (c *Consensus) DecidedState() (ValidatedState, error) {
	state, _, ok := c.StateAndDelta(c.lastDecidedView)
	if !ok {
		return nil, fmt.Errorf("decided view %d has no state: %w", c.lastDecidedView, ErrInconsistentState)
	}
	return state, nil
}

// UndecidedLeaves returns the held leaves, including the newest decided one,
// by ascending view.
func (c *Consensus) UndecidedLeaves() []*model.Leaf {
	leaves := maps.Values(c.savedLeaves)
	slices.SortFunc(leaves, func(a, b *model.Leaf) int {
		switch {
		case a.View() < b.View():
			return -1
		case a.View() > b.View():
			return 1
		default:
			return 0
		}
	})
	return leaves
}

// State returns the validated state of the view if it holds a leaf. A leaf
// recorded from a proposal before the replica applied its header has a nil
// state; ok is true for it all the same, so a child can still be validated
// against it.
func (c *Consensus) State(view model.View) (ValidatedState, bool) {
	state, _, ok := c.StateAndDelta(view)
	return state, ok
}

func (c *Consensus) StateAndDelta(view model.View) (ValidatedState, StateDelta, bool) {
	entry, ok := c.validatedStateMap[view]
	if !ok || entry.Kind != ViewLeaf {
		return nil, nil, false
	}
	return entry.State, entry.Delta, true
}

// ParentLeafInfo returns what the replica holds for the parent of leaf: the
// parent leaf, its state, the replica's own VID share of it and, for an
// epoch root parent, the matching light client state certificate.
func (c *Consensus) ParentLeafInfo(leaf *model.Leaf, key signature.PublicKey) (*LeafInfo, bool) {
	parentView := leaf.Justify.View()
	parentEpoch := leaf.Justify.DataEpoch()
	parent, ok := c.savedLeaves[leaf.Justify.Data.LeafCommit]
	if !ok {
		return nil, false
	}
	state, delta, ok := c.StateAndDelta(parentView)
	if !ok {
		return nil, false
	}
	info := &LeafInfo{Leaf: parent, State: state, Delta: delta}
	if share, ok := c.VidShare(parentView, key, parentEpoch); ok {
		info.VidShare = share.Data
	}
	if parent.WithEpoch && model.IsEpochRoot(parent.Height(), c.epochHeight) &&
		c.stateCert != nil && c.stateCert.View() == parentView {
		info.StateCert = c.stateCert
	}
	return info, true
}

func (c *Consensus) isTransitionQC(qc *model.QuorumCertificate2) bool {
	bn, ok := qc.Data.Block()
	return ok && model.IsTransitionBlock(bn, c.epochHeight)
}

func (c *Consensus) savedLeafHeight(commit model.Commitment) (uint64, bool) {
	leaf, ok := c.savedLeaves[commit]
	if !ok {
		return 0, false
	}
	return leaf.Height(), true
}

// IsEpochTransition reports whether the held leaf is one of the epoch
// transition blocks.
func (c *Consensus) IsEpochTransition(leafCommit model.Commitment) bool {
	height, ok := c.savedLeafHeight(leafCommit)
	return ok && model.IsEpochTransition(height, c.epochHeight)
}

// IsHighQCForEpochTransition reports whether the high QC certifies an epoch
// transition block.
func (c *Consensus) IsHighQCForEpochTransition() bool {
	bn, ok := c.highQC.Data.Block()
	return ok && model.IsEpochTransition(bn, c.epochHeight)
}

// IsHighQCForLastBlock reports whether the high QC certifies the last block
// of an epoch.
func (c *Consensus) IsHighQCForLastBlock() bool {
	bn, ok := c.highQC.Data.Block()
	return ok && model.IsLastBlock(bn, c.epochHeight)
}

// IsLeafExtended reports whether the held leaf is the last block of its
// epoch, which is certified by both epochs' committees.
func (c *Consensus) IsLeafExtended(leafCommit model.Commitment) bool {
	height, ok := c.savedLeafHeight(leafCommit)
	return ok && model.IsLastBlock(height, c.epochHeight)
}

// IsQCFormingEqc reports whether qc together with the next epoch high QC is
// an extended QC: both certify the same last block of an epoch.
func (c *Consensus) IsQCFormingEqc(qc *model.QuorumCertificate2) bool {
	return c.IsLeafExtended(qc.Data.LeafCommit) &&
		c.nextEpochHighQC != nil &&
		c.nextEpochHighQC.Data.LeafCommit == qc.Data.LeafCommit
}

// CheckEqc reports whether parent's QC, as justification of proposed, is the
// extended QC closing the previous epoch. Genesis justifies anything.
func (c *Consensus) CheckEqc(proposed, parent *model.Leaf) bool {
	if parent.View() == model.GenesisView {
		return true
	}
	newEpoch := model.EpochFromBlockNumber(proposed.Height(), c.epochHeight)
	oldEpoch := model.EpochFromBlockNumber(parent.Height(), c.epochHeight)
	return newEpoch == oldEpoch+1 && model.IsLastBlock(parent.Height(), c.epochHeight)
}

// IsHighQCGeRootBlock reports whether the high QC certifies the epoch root
// block or a later block of its epoch.
func (c *Consensus) IsHighQCGeRootBlock() bool {
	height, ok := c.savedLeafHeight(c.highQC.Data.LeafCommit)
	return ok && model.IsGeEpochRoot(height, c.epochHeight)
}
