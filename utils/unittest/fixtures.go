package unittest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// KeyPairs returns n deterministic key pairs.
func KeyPairs(t testing.TB, n int) []*signature.PrivateKey {
	keys := make([]*signature.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		sk, err := signature.KeyPairFromSeed([]byte(fmt.Sprintf("hotshot-node-%d", i)))
		require.NoError(t, err)
		keys = append(keys, sk)
	}
	return keys
}

// CommitteeFixture is a set of equally staked nodes. Keys[i] is node i;
// its position in Table is generally different.
type CommitteeFixture struct {
	Keys  []*signature.PrivateKey
	Table model.StakeTable
}

// Committee returns a committee of n nodes with stake 1 each.
func Committee(t testing.TB, n int) *CommitteeFixture {
	keys := KeyPairs(t, n)
	return &CommitteeFixture{Keys: keys, Table: StakeTableFixture(keys, 1)}
}

// StakeTableFixture gives every key the same stake.
func StakeTableFixture(keys []*signature.PrivateKey, stake uint64) model.StakeTable {
	entries := make([]model.StakeTableEntry, 0, len(keys))
	for _, sk := range keys {
		entries = append(entries, model.StakeTableEntry{Key: sk.PublicKey(), Stake: stake})
	}
	return model.NewStakeTable(entries...)
}

func (c *CommitteeFixture) PublicKey(i int) signature.PublicKey { return c.Keys[i].PublicKey() }

// KeyOf returns the private key of a committee member.
func (c *CommitteeFixture) KeyOf(t testing.TB, pk signature.PublicKey) *signature.PrivateKey {
	for _, sk := range c.Keys {
		if sk.PublicKey() == pk {
			return sk
		}
	}
	require.FailNow(t, "key is not part of the committee", pk.String())
	return nil
}

// Certify has the given nodes vote on data for the view and aggregates their
// votes into a certificate, without checking any threshold.
func Certify[D model.VoteData, T model.Threshold](t testing.TB, c *CommitteeFixture, data D, view model.View, lock *model.UpgradeLock, signers ...int) *model.SimpleCertificate[D, T] {
	pp, err := signature.NewPublicParameter(c.Table.WeightedKeys(), 0)
	require.NoError(t, err)
	bitmap := signature.NewSignerBitmap(len(c.Table))
	sigs := make([]signature.Signature, 0, len(signers))
	for _, i := range signers {
		vote, err := model.CreateSignedVote(data, view, c.Keys[i], lock)
		require.NoError(t, err)
		_, idx, ok := c.Table.Lookup(vote.Signer)
		require.True(t, ok)
		bitmap.Set(idx)
		sigs = append(sigs, vote.Signature)
	}
	qs, err := signature.Assemble(pp, bitmap, sigs)
	require.NoError(t, err)
	commit, err := model.VersionedVoteCommitment(data, view, lock)
	require.NoError(t, err)
	return model.CreateSignedCertificate[D, T](commit, data, qs, view)
}

// All returns the indices of every committee member.
func (c *CommitteeFixture) All() []int {
	idx := make([]int, len(c.Keys))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// PayloadCommitmentFixture returns a distinct payload commitment per seed.
func PayloadCommitmentFixture(seed uint64) model.VidCommitment {
	return model.NewCommitmentBuilder("payload fixture").U64Field("seed", seed).Finalize()
}

// HeaderFixture returns a header for the block number.
func HeaderFixture(blockNumber uint64) model.BlockHeader {
	return model.BlockHeader{
		BlockNumber:       blockNumber,
		PayloadCommitment: PayloadCommitmentFixture(blockNumber),
		BuilderCommitment: model.NewCommitmentBuilder("builder fixture").U64Field("block", blockNumber).Finalize(),
		Timestamp:         1_700_000_000 + blockNumber,
	}
}

// ChainFixture builds chains of leaves, each justified by a QC of the
// committee over its parent.
type ChainFixture struct {
	t           testing.TB
	Committee   *CommitteeFixture
	Lock        *model.UpgradeLock
	EpochHeight uint64
	WithEpoch   bool
	genesis     *model.Leaf
}

func NewChainFixture(t testing.TB, committee *CommitteeFixture, lock *model.UpgradeLock, epochHeight uint64, withEpoch bool) *ChainFixture {
	return &ChainFixture{
		t:           t,
		Committee:   committee,
		Lock:        lock,
		EpochHeight: epochHeight,
		WithEpoch:   withEpoch,
		genesis:     model.GenesisLeaf(HeaderFixture(0), withEpoch),
	}
}

func (c *ChainFixture) Genesis() *model.Leaf { return c.genesis }

// QuorumData returns what a replica votes for the leaf.
func (c *ChainFixture) QuorumData(leaf *model.Leaf) model.QuorumData2 {
	data := model.QuorumData2{LeafCommit: leaf.Commit()}
	if c.WithEpoch {
		data.Epoch = leaf.Epoch(c.EpochHeight)
		height := leaf.Height()
		data.BlockNumber = &height
	}
	return data
}

// QC certifies the leaf with the votes of the whole committee.
func (c *ChainFixture) QC(leaf *model.Leaf) *model.QuorumCertificate2 {
	if leaf.View() == model.GenesisView {
		return model.GenesisQuorumCertificate(leaf.Commit())
	}
	return Certify[model.QuorumData2, model.SuccessThreshold](c.t, c.Committee, c.QuorumData(leaf), leaf.View(), c.Lock, c.Committee.All()...)
}

// NextEpochQC is the next epoch's certificate over the leaf. The fixture
// committee serves both epochs.
func (c *ChainFixture) NextEpochQC(leaf *model.Leaf) *model.NextEpochQuorumCertificate2 {
	return model.ToNextEpochQC(c.QC(leaf))
}

// Extend returns a child of parent in view, justified by the QC over parent.
// Children of epoch transition blocks also carry the next epoch QC.
func (c *ChainFixture) Extend(parent *model.Leaf, view model.View) *model.Leaf {
	leaf := &model.Leaf{
		ViewNumber:       view,
		Justify:          c.QC(parent),
		ParentCommitment: parent.Commit(),
		BlockHeader:      HeaderFixture(parent.Height() + 1),
		WithEpoch:        c.WithEpoch,
	}
	if c.WithEpoch && model.IsEpochTransition(parent.Height(), c.EpochHeight) {
		leaf.NextEpochJustify = c.NextEpochQC(parent)
	}
	return leaf
}

// Build returns a chain extending genesis with one leaf per view.
func (c *ChainFixture) Build(views ...model.View) []*model.Leaf {
	leaves := make([]*model.Leaf, 0, len(views))
	parent := c.genesis
	for _, v := range views {
		parent = c.Extend(parent, v)
		leaves = append(leaves, parent)
	}
	return leaves
}

// Proposal returns the proposal of the leaf.
func (c *ChainFixture) Proposal(leaf *model.Leaf) *model.QuorumProposal2 {
	return &model.QuorumProposal2{
		BlockHeader:        leaf.BlockHeader,
		ViewNumber:         leaf.ViewNumber,
		Epoch:              leaf.Epoch(c.EpochHeight),
		JustifyQC:          leaf.Justify,
		NextEpochJustifyQC: leaf.NextEpochJustify,
		UpgradeCertificate: leaf.UpgradeCertificate,
		ViewChangeEvidence: leaf.ViewChangeEvidence,
		NextDrbResult:      leaf.NextDrbResult,
	}
}
