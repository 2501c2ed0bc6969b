package persister

import (
	"context"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/state"
	"github.com/onflow/hotshot/storage"
	"github.com/onflow/hotshot/storage/badger/operation"
	"github.com/onflow/hotshot/utils/unittest"
)

const epochHeight = 10

func TestPersister(t *testing.T) {
	suite.Run(t, new(PersisterSuite))
}

type PersisterSuite struct {
	suite.Suite

	ctx       context.Context
	dir       string
	persister *Persister
	committee *unittest.CommitteeFixture
	chain     *unittest.ChainFixture
}

func (s *PersisterSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = unittest.TempDir(s.T())
	s.committee = unittest.Committee(s.T(), 4)
	s.chain = unittest.NewChainFixture(s.T(), s.committee, model.StaticUpgradeLock(model.EpochVersion), epochHeight, true)
	s.reopen()
}

func (s *PersisterSuite) TearDownTest() {
	if s.persister != nil {
		s.Require().NoError(s.persister.Close())
	}
	s.Require().NoError(os.RemoveAll(s.dir))
}

// reopen closes the database, if open, and opens it again like a restart does.
func (s *PersisterSuite) reopen() {
	if s.persister != nil {
		s.Require().NoError(s.persister.Close())
	}
	p, err := Open(unittest.Logger(), s.dir)
	s.Require().NoError(err)
	s.persister = p
}

func (s *PersisterSuite) signed(leaf *model.Leaf) *model.SignedQuorumProposal {
	p, err := model.SignQuorumProposal(s.chain.Proposal(leaf), s.committee.Keys[0])
	s.Require().NoError(err)
	return p
}

func (s *PersisterSuite) TestEmpty() {
	leaf, qc, err := s.persister.LoadAnchorLeaf(s.ctx)
	s.Require().NoError(err)
	s.Assert().Nil(leaf)
	s.Assert().Nil(qc)

	highQC, err := s.persister.LoadHighQC(s.ctx)
	s.Require().NoError(err)
	s.Assert().Nil(highQC)

	next, err := s.persister.LoadNextEpochHighQC(s.ctx)
	s.Require().NoError(err)
	s.Assert().Nil(next)

	upgrade, err := s.persister.LoadUpgradeCertificate(s.ctx)
	s.Require().NoError(err)
	s.Assert().Nil(upgrade)

	cert, err := s.persister.LoadStateCert(s.ctx)
	s.Require().NoError(err)
	s.Assert().Nil(cert)

	proposals, err := s.persister.LoadQuorumProposals(s.ctx)
	s.Require().NoError(err)
	s.Assert().Empty(proposals)

	drb, err := s.persister.LoadDrbResults(s.ctx)
	s.Require().NoError(err)
	s.Assert().Empty(drb)
}

func (s *PersisterSuite) TestHighQCOnlyAdvances() {
	leaves := s.chain.Build(1, 2, 3)

	s.Require().NoError(s.persister.UpdateHighQC(s.ctx, s.chain.QC(leaves[1])))
	s.Require().NoError(s.persister.UpdateHighQC(s.ctx, s.chain.QC(leaves[0])))

	qc, err := s.persister.LoadHighQC(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(model.View(2), qc.View())
	s.Assert().Equal(leaves[1].Commit(), qc.Data.LeafCommit)

	s.Require().NoError(s.persister.UpdateHighQC(s.ctx, s.chain.QC(leaves[2])))
	qc, err = s.persister.LoadHighQC(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(model.View(3), qc.View())
}

func (s *PersisterSuite) TestNextEpochHighQCOnlyAdvances() {
	leaves := s.chain.Build(1, 2)

	s.Require().NoError(s.persister.UpdateNextEpochHighQC(s.ctx, s.chain.NextEpochQC(leaves[1])))
	s.Require().NoError(s.persister.UpdateNextEpochHighQC(s.ctx, s.chain.NextEpochQC(leaves[0])))

	qc, err := s.persister.LoadNextEpochHighQC(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(model.View(2), qc.View())
	s.Assert().Equal(s.chain.NextEpochQC(leaves[1]).Commit(), qc.Commit())
}

func (s *PersisterSuite) TestStateCertOnlyAdvances() {
	s.Require().NoError(s.persister.UpdateStateCert(s.ctx, &model.LightClientStateUpdateCertificate{Epoch: 3}))
	s.Require().NoError(s.persister.UpdateStateCert(s.ctx, &model.LightClientStateUpdateCertificate{Epoch: 2}))

	cert, err := s.persister.LoadStateCert(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(model.Epoch(3), cert.Epoch)
}

func (s *PersisterSuite) TestAnchorLeafPrunesOlderViews() {
	leaves := s.chain.Build(1, 2, 3, 4, 5)
	for _, leaf := range leaves {
		s.Require().NoError(s.persister.AppendProposal(s.ctx, s.signed(leaf)))
		da := &model.DaCertificate2{ViewNumber: leaf.View(), Data: model.DaData2{PayloadCommit: leaf.PayloadCommitment()}}
		s.Require().NoError(s.persister.AppendDa(s.ctx, da))
	}

	s.Require().NoError(s.persister.UpdateAnchorLeaf(s.ctx, leaves[2], s.chain.QC(leaves[3])))

	proposals, err := s.persister.LoadQuorumProposals(s.ctx)
	s.Require().NoError(err)
	s.Assert().Len(proposals, 3)
	for _, view := range []model.View{3, 4, 5} {
		s.Assert().Contains(proposals, view)
	}
	_, err = s.persister.LoadDaCertificate(s.ctx, 2)
	s.Assert().ErrorIs(err, storage.ErrNotFound)
	da, err := s.persister.LoadDaCertificate(s.ctx, 3)
	s.Require().NoError(err)
	s.Assert().Equal(leaves[2].PayloadCommitment(), da.Data.PayloadCommit)

	// an older anchor doesn't replace the newer one
	s.Require().NoError(s.persister.UpdateAnchorLeaf(s.ctx, leaves[0], s.chain.QC(leaves[1])))
	leaf, qc, err := s.persister.LoadAnchorLeaf(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(leaves[2].Commit(), leaf.Commit())
	s.Assert().Equal(model.View(4), qc.View())
}

func (s *PersisterSuite) TestProposalRange() {
	for _, leaf := range s.chain.Build(1, 2, 4, 7) {
		s.Require().NoError(s.persister.AppendProposal(s.ctx, s.signed(leaf)))
	}

	proposals, err := s.persister.LoadProposalRange(s.ctx, 2, 6)
	s.Require().NoError(err)
	s.Require().Len(proposals, 2)
	s.Assert().Equal(model.View(2), proposals[0].Data.ViewNumber)
	s.Assert().Equal(model.View(4), proposals[1].Data.ViewNumber)

	proposals, err = s.persister.LoadProposalRange(s.ctx, 8, 100)
	s.Require().NoError(err)
	s.Assert().Empty(proposals)
}

func (s *PersisterSuite) TestDrbResults() {
	s.Require().NoError(s.persister.StoreDrbResult(s.ctx, 2, model.DrbResult{2}))
	s.Require().NoError(s.persister.StoreDrbResult(s.ctx, 3, model.DrbResult{3}))
	// storing the same result again is fine
	s.Require().NoError(s.persister.StoreDrbResult(s.ctx, 3, model.DrbResult{3}))

	err := s.persister.StoreDrbResult(s.ctx, 3, model.DrbResult{4})
	s.Assert().ErrorIs(err, storage.ErrDataMismatch)

	results, err := s.persister.LoadDrbResults(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(map[model.Epoch]model.DrbResult{2: {2}, 3: {3}}, results)
}

func (s *PersisterSuite) TestEpochRoot() {
	header := unittest.HeaderFixture(15)
	s.Require().NoError(s.persister.StoreEpochRoot(s.ctx, 3, header))

	root, err := s.persister.LoadEpochRoot(s.ctx, 3)
	s.Require().NoError(err)
	s.Assert().Equal(header.Commit(), root.Commit())

	_, err = s.persister.LoadEpochRoot(s.ctx, 4)
	s.Assert().ErrorIs(err, storage.ErrNotFound)
}

func (s *PersisterSuite) TestVidShare() {
	leaf := s.chain.Build(1)[0]
	share, err := model.SignVidShare(&model.VidDisperseShare{
		ViewNumber:        1,
		PayloadCommitment: leaf.PayloadCommitment(),
		Share:             []byte{1, 2, 3},
		RecipientKey:      s.committee.PublicKey(1),
		Epoch:             1,
		TargetEpoch:       1,
	}, s.committee.Keys[0])
	s.Require().NoError(err)
	s.Require().NoError(s.persister.AppendVid(s.ctx, share))

	loaded, err := s.persister.LoadVidShare(s.ctx, 1, 1)
	s.Require().NoError(err)
	s.Assert().Equal(share.Data.Share, loaded.Data.Share)
	s.Assert().Equal(s.committee.PublicKey(1), loaded.Data.RecipientKey)
	s.Require().NoError(model.VerifyVidShareSignature(loaded, s.committee.PublicKey(0)))
}

func (s *PersisterSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.persister.UpdateHighQC(ctx, s.chain.QC(s.chain.Build(1)[0]))
	s.Assert().ErrorIs(err, context.Canceled)
}

// TestRestoreAfterRestart persists what a replica stores while running,
// reopens the database and rebuilds the consensus state from it.
func (s *PersisterSuite) TestRestoreAfterRestart() {
	leaves := s.chain.Build(1, 2, 3, 4, 5)
	for _, leaf := range leaves {
		s.Require().NoError(s.persister.AppendProposal(s.ctx, s.signed(leaf)))
	}
	s.Require().NoError(s.persister.UpdateHighQC(s.ctx, s.chain.QC(leaves[4])))
	s.Require().NoError(s.persister.UpdateAnchorLeaf(s.ctx, leaves[1], s.chain.QC(leaves[2])))
	s.Require().NoError(s.persister.StoreDrbResult(s.ctx, 2, model.DrbResult{7}))

	s.reopen()

	c, err := state.Restore(s.ctx, unittest.Logger(), s.persister, state.RestoreConfig{
		Genesis:     s.chain.Genesis(),
		EpochHeight: epochHeight,
	})
	s.Require().NoError(err)

	s.Assert().Equal(model.View(5), c.HighQC().View())
	s.Assert().Equal(model.View(2), c.LastDecidedView())
	decided, err := c.DecidedLeaf()
	s.Require().NoError(err)
	s.Assert().Equal(leaves[1].Commit(), decided.Commit())
	for _, leaf := range leaves[2:] {
		_, ok := c.SavedLeaf(leaf.Commit())
		s.Assert().True(ok, "leaf of view %d should be restored", leaf.View())
	}
	result, ok := c.DrbResults().Get(2)
	s.Require().True(ok)
	s.Assert().Equal(model.DrbResult{7}, result)
}

func TestNewRejectsOtherLayoutVersion(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		require.NoError(t, db.Update(operation.InsertDBVersion(DBVersion+1)))

		_, err := New(unittest.Logger(), db)
		require.Error(t, err)
	})
}

func TestNewKeepsOwnLayoutVersion(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		_, err := New(unittest.Logger(), db)
		require.NoError(t, err)
		_, err = New(unittest.Logger(), db)
		require.NoError(t, err)

		var version uint32
		require.NoError(t, db.View(operation.RetrieveDBVersion(&version)))
		assert.Equal(t, DBVersion, version)
	})
}
