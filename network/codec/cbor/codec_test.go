package cbor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/network/codec"
	"github.com/onflow/hotshot/utils/unittest"
)

func TestProposalSurvivesEncoding(t *testing.T) {
	committee := unittest.Committee(t, 4)
	lock := model.StaticUpgradeLock(model.EpochVersion)
	chain := unittest.NewChainFixture(t, committee, lock, 10, true)
	leaf := chain.Build(1, 2)[1]
	signed, err := model.SignQuorumProposal(chain.Proposal(leaf), committee.Keys[2])
	require.NoError(t, err)

	c := NewCodec()
	data, err := c.Encode(signed)
	require.NoError(t, err)
	assert.Equal(t, codec.CodeQuorumProposal, data[0])

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	proposal, ok := decoded.(*model.SignedQuorumProposal)
	require.True(t, ok)

	// the decoded proposal still verifies, and its justify QC against the committee
	require.NoError(t, model.VerifyQuorumProposal(proposal, committee.PublicKey(2)))
	threshold := proposal.Data.JustifyQC.ThresholdOf(committees.NewThresholds(committee.Table))
	require.NoError(t, proposal.Data.JustifyQC.IsValidCert(committee.Table, threshold, lock))
	assert.Equal(t, leaf.Commit(), model.LeafFromProposal(proposal.Data).Commit())
}

func TestVoteSurvivesEncoding(t *testing.T) {
	committee := unittest.Committee(t, 4)
	lock := model.StaticUpgradeLock(model.BaseVersion)
	vote, err := model.CreateSignedVote(model.TimeoutData2{View: 7}, 7, committee.Keys[1], lock)
	require.NoError(t, err)

	c := NewCodec()
	data, err := c.Encode(vote)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	actual, ok := decoded.(*model.TimeoutVote2)
	require.True(t, ok)
	assert.Equal(t, committee.PublicKey(1), actual.Signer)
	require.NoError(t, actual.Verify(lock))
}

func TestEncodingIsDeterministic(t *testing.T) {
	committee := unittest.Committee(t, 4)
	vote, err := model.CreateSignedVote(model.TimeoutData2{View: 7}, 7, committee.Keys[1], model.StaticUpgradeLock(model.BaseVersion))
	require.NoError(t, err)

	c := NewCodec()
	first, err := c.Encode(vote)
	require.NoError(t, err)
	second, err := c.Encode(vote)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeErrors(t *testing.T) {
	c := NewCodec()

	_, err := c.Decode(nil)
	assert.ErrorIs(t, err, codec.ErrInvalidEncoding)

	_, err = c.Decode([]byte{codec.CodeMax, 0x01})
	assert.True(t, codec.IsUnknownCodeError(err))

	// a CBOR text string doesn't decode into a vote
	_, err = c.Decode([]byte{codec.CodeQuorumVote, 0x61, 'a'})
	assert.True(t, codec.IsPayloadError(err))

	_, err = c.Encode(&model.Leaf{})
	assert.True(t, codec.IsUnsupportedTypeError(err))
}

func TestStream(t *testing.T) {
	committee := unittest.Committee(t, 4)
	lock := model.StaticUpgradeLock(model.BaseVersion)
	first, err := model.CreateSignedVote(model.TimeoutData2{View: 7}, 7, committee.Keys[1], lock)
	require.NoError(t, err)
	second := &codec.HighQCMessage{QC: model.GenesisQuorumCertificate(model.ZeroCommitment)}

	c := NewCodec()
	var buf bytes.Buffer
	enc := c.NewEncoder(&buf)
	require.NoError(t, enc.Encode(first))
	require.NoError(t, enc.Encode(second))

	dec := c.NewDecoder(&buf)
	v, err := dec.Decode()
	require.NoError(t, err)
	assert.IsType(t, &model.TimeoutVote2{}, v)
	v, err = dec.Decode()
	require.NoError(t, err)
	msg, ok := v.(*codec.HighQCMessage)
	require.True(t, ok)
	assert.Equal(t, model.GenesisView, msg.QC.View())
	assert.Nil(t, msg.NextEpochQC)

	_, err = dec.Decode()
	assert.Error(t, err)
}
