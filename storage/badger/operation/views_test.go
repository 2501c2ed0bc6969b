package operation

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/storage"
	"github.com/onflow/hotshot/utils/unittest"
)

func signedProposals(t *testing.T, views ...model.View) []*model.SignedQuorumProposal {
	committee := unittest.Committee(t, 4)
	chain := unittest.NewChainFixture(t, committee, model.StaticUpgradeLock(model.BaseVersion), 10, false)
	proposals := make([]*model.SignedQuorumProposal, 0, len(views))
	for _, leaf := range chain.Build(views...) {
		p, err := model.SignQuorumProposal(chain.Proposal(leaf), committee.Keys[0])
		require.NoError(t, err)
		proposals = append(proposals, p)
	}
	return proposals
}

func TestProposalInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		expected := signedProposals(t, 1, 2)[1]

		err := db.Update(UpsertProposal(expected))
		require.NoError(t, err)

		var actual model.SignedQuorumProposal
		err = db.View(RetrieveProposal(2, &actual))
		require.NoError(t, err)

		assert.Equal(t, expected.Data.ViewNumber, actual.Data.ViewNumber)
		assert.Equal(t, expected.Signature, actual.Signature)
		assert.Equal(t, model.LeafFromProposal(expected.Data).Commit(), model.LeafFromProposal(actual.Data).Commit())
		assert.Equal(t, expected.Data.JustifyQC.Commit(), actual.Data.JustifyQC.Commit())
		assert.Equal(t, expected.Data.JustifyQC.Signatures, actual.Data.JustifyQC.Signatures)
	})
}

func TestProposalMissing(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var actual model.SignedQuorumProposal
		err := db.View(RetrieveProposal(7, &actual))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTraverseProposalsInViewOrder(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		proposals := signedProposals(t, 1, 2, 3, 300)
		// insertion order doesn't determine traversal order
		for i := len(proposals) - 1; i >= 0; i-- {
			require.NoError(t, db.Update(UpsertProposal(proposals[i])))
		}

		var views []model.View
		seen := make(map[model.View]*model.SignedQuorumProposal)
		err := db.View(TraverseProposals(func(p *model.SignedQuorumProposal) error {
			views = append(views, p.Data.ViewNumber)
			seen[p.Data.ViewNumber] = p
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []model.View{1, 2, 3, 300}, views)

		// every handled proposal is a distinct value
		for _, p := range proposals {
			assert.Equal(t, p.Data.BlockHeader.BlockNumber, seen[p.Data.ViewNumber].Data.BlockHeader.BlockNumber)
		}
	})
}

func TestTraverseProposalRange(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		for _, p := range signedProposals(t, 1, 2, 3, 300) {
			require.NoError(t, db.Update(UpsertProposal(p)))
		}

		var views []model.View
		err := db.View(TraverseProposalRange(2, 299, func(p *model.SignedQuorumProposal) error {
			views = append(views, p.Data.ViewNumber)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []model.View{2, 3}, views)
	})
}

func TestPruneBelowView(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		proposals := signedProposals(t, 1, 2, 3, 4)
		for _, p := range proposals {
			require.NoError(t, db.Update(UpsertProposal(p)))
			share := &model.SignedVidShare{
				Data:      &model.VidDisperseShare{ViewNumber: p.Data.ViewNumber, PayloadCommitment: p.Data.BlockHeader.PayloadCommitment},
				Signature: p.Signature,
			}
			require.NoError(t, db.Update(UpsertVidShare(share)))
		}

		require.NoError(t, db.Update(PruneBelowView(3)))

		var views []model.View
		err := db.View(TraverseProposals(func(p *model.SignedQuorumProposal) error {
			views = append(views, p.Data.ViewNumber)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []model.View{3, 4}, views)

		var share model.SignedVidShare
		require.ErrorIs(t, db.View(RetrieveVidShare(2, model.NoEpoch, &share)), storage.ErrNotFound)
		require.NoError(t, db.View(RetrieveVidShare(3, model.NoEpoch, &share)))
		assert.Equal(t, model.View(3), share.Data.ViewNumber)
	})
}

func TestVidSharesPerTargetEpoch(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		current := &model.SignedVidShare{Data: &model.VidDisperseShare{ViewNumber: 9, Epoch: 1, TargetEpoch: 1, ShareIndex: 1}}
		next := &model.SignedVidShare{Data: &model.VidDisperseShare{ViewNumber: 9, Epoch: 1, TargetEpoch: 2, ShareIndex: 2}}
		require.NoError(t, db.Update(UpsertVidShare(current)))
		require.NoError(t, db.Update(UpsertVidShare(next)))

		var actual model.SignedVidShare
		require.NoError(t, db.View(RetrieveVidShare(9, 1, &actual)))
		assert.Equal(t, uint32(1), actual.Data.ShareIndex)
		require.NoError(t, db.View(RetrieveVidShare(9, 2, &actual)))
		assert.Equal(t, uint32(2), actual.Data.ShareIndex)
	})
}

func TestCorruptValue(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		err := db.Update(func(tx *badger.Txn) error {
			return tx.Set(makePrefix(codeHighQC), []byte{0xff, 0xff, 0xff})
		})
		require.NoError(t, err)

		var qc model.QuorumCertificate2
		err = db.View(RetrieveHighQC(&qc))
		require.Error(t, err)
		assert.ErrorIs(t, err, errCorruptValue)
	})
}
