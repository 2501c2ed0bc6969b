package operation

import (
	"math"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// UpsertProposal stores a proposal under its view. A later proposal for the
// same view replaces the earlier one.
func UpsertProposal(proposal *model.SignedQuorumProposal) func(*badger.Txn) error {
	return upsert(makePrefix(codeProposal, proposal.Data.ViewNumber), proposal)
}

// RetrieveProposal returns storage.ErrNotFound if no proposal is stored for view.
func RetrieveProposal(view model.View, proposal *model.SignedQuorumProposal) func(*badger.Txn) error {
	return retrieve(makePrefix(codeProposal, view), proposal)
}

// TraverseProposals calls handle for every stored proposal in ascending view
// order.
func TraverseProposals(handle func(*model.SignedQuorumProposal) error) func(*badger.Txn) error {
	return TraverseProposalRange(model.GenesisView, model.View(math.MaxUint64), handle)
}

// TraverseProposalRange visits the proposals of views in [from, to] in view order.
func TraverseProposalRange(from, to model.View, handle func(*model.SignedQuorumProposal) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeProposal), func(key []byte) (interface{}, func() error) {
		view := viewFromKey(key)
		if view < from || view > to {
			return nil, nil
		}
		var proposal model.SignedQuorumProposal
		return &proposal, func() error { return handle(&proposal) }
	})
}

// UpsertVidShare stores a VID share under its view and the epoch it was
// dispersed for, so both dispersals of an epoch transition block are kept.
func UpsertVidShare(share *model.SignedVidShare) func(*badger.Txn) error {
	return upsert(makePrefix(codeVidShare, share.Data.ViewNumber, share.Data.TargetEpoch), share)
}

func RetrieveVidShare(view model.View, targetEpoch model.Epoch, share *model.SignedVidShare) func(*badger.Txn) error {
	return retrieve(makePrefix(codeVidShare, view, targetEpoch), share)
}

// UpsertDaCertificate stores a DA certificate under its view.
func UpsertDaCertificate(cert *model.DaCertificate2) func(*badger.Txn) error {
	return upsert(makePrefix(codeDaCert, cert.ViewNumber), cert)
}

func RetrieveDaCertificate(view model.View, cert *model.DaCertificate2) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDaCert, view), cert)
}

// PruneBelowView removes the proposals, VID shares and DA certificates of
// all views strictly below view.
func PruneBelowView(view model.View) func(*badger.Txn) error {
	below := func(key []byte) bool {
		return viewFromKey(key) < view
	}
	return func(tx *badger.Txn) error {
		for _, code := range []byte{codeProposal, codeVidShare, codeDaCert} {
			err := removeWhere(makePrefix(code), below)(tx)
			if err != nil {
				return err
			}
		}
		return nil
	}
}
