package signature

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(t *testing.T, n int) []*PrivateKey {
	out := make([]*PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		sk, err := KeyPairFromSeed([]byte(fmt.Sprintf("node-%d", i)))
		require.NoError(t, err)
		out = append(out, sk)
	}
	return out
}

func TestSignVerify(t *testing.T) {
	sk := keys(t, 1)[0]
	msg := []byte("leaf commitment")

	sig, err := Sign(sk, VoteTag, msg)
	require.NoError(t, err)
	require.NoError(t, Verify(sk.PublicKey(), VoteTag, msg, sig))

	t.Run("other message", func(t *testing.T) {
		err := Verify(sk.PublicKey(), VoteTag, []byte("other"), sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
	t.Run("other domain", func(t *testing.T) {
		err := Verify(sk.PublicKey(), ProposalTag, msg, sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
	t.Run("empty signature", func(t *testing.T) {
		err := Verify(sk.PublicKey(), VoteTag, msg, nil)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}

func TestKeyPairFromSeedIsDeterministic(t *testing.T) {
	a, err := KeyPairFromSeed([]byte("seed"))
	require.NoError(t, err)
	b, err := KeyPairFromSeed([]byte("seed"))
	require.NoError(t, err)
	c, err := KeyPairFromSeed([]byte("other seed"))
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey(), b.PublicKey())
	assert.NotEqual(t, a.PublicKey(), c.PublicKey())

	decoded, err := PublicKeyFromBytes(a.PublicKey().Bytes())
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey(), decoded)
}

func TestGenerateKeyPair(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey(), b.PublicKey())

	msg := []byte("payload commitment")
	sig, err := Sign(a, DaProposalTag, msg)
	require.NoError(t, err)
	require.NoError(t, Verify(a.PublicKey(), DaProposalTag, msg, sig))
	assert.ErrorIs(t, Verify(b.PublicKey(), DaProposalTag, msg, sig), ErrInvalidSignature)
}

func TestAssembleAndCheck(t *testing.T) {
	sks := keys(t, 4)
	table := make([]WeightedKey, 0, len(sks))
	for _, sk := range sks {
		table = append(table, WeightedKey{Key: sk.PublicKey(), Weight: 1})
	}
	pp, err := NewPublicParameter(table, 3)
	require.NoError(t, err)
	msg := []byte("vote commitment")

	sign := func(idx ...int) (SignerBitmap, []Signature) {
		bitmap := NewSignerBitmap(len(sks))
		sigs := make([]Signature, 0, len(idx))
		for _, i := range idx {
			sig, err := Sign(sks[i], VoteTag, msg)
			require.NoError(t, err)
			bitmap.Set(i)
			sigs = append(sigs, sig)
		}
		return bitmap, sigs
	}

	t.Run("quorum verifies", func(t *testing.T) {
		bitmap, sigs := sign(0, 2, 3)
		qs, err := Assemble(pp, bitmap, sigs)
		require.NoError(t, err)
		require.NoError(t, Check(pp, VoteTag, msg, qs))
		assert.ErrorIs(t, Check(pp, VoteTag, []byte("other"), qs), ErrInvalidSignature)
	})

	t.Run("insufficient weight", func(t *testing.T) {
		bitmap, sigs := sign(0, 1)
		qs, err := Assemble(pp, bitmap, sigs)
		require.NoError(t, err)
		assert.ErrorIs(t, Check(pp, VoteTag, msg, qs), ErrInsufficientWeight)
	})

	t.Run("forged bitmap", func(t *testing.T) {
		bitmap, sigs := sign(0, 1, 2)
		qs, err := Assemble(pp, bitmap, sigs)
		require.NoError(t, err)
		qs.Signers.Clear(2)
		qs.Signers.Set(3)
		assert.ErrorIs(t, Check(pp, VoteTag, msg, qs), ErrInvalidSignature)
	})

	t.Run("signature count mismatch", func(t *testing.T) {
		bitmap, sigs := sign(0, 1, 2)
		_, err := Assemble(pp, bitmap, sigs[:2])
		assert.ErrorIs(t, err, ErrInvalidInputs)
	})
}

func TestSignerBitmap(t *testing.T) {
	b := NewSignerBitmap(10)
	require.Len(t, b.Bits, 2)
	b.Set(0)
	b.Set(9)
	assert.True(t, b.IsSet(0))
	assert.False(t, b.IsSet(1))
	assert.Equal(t, []int{0, 9}, b.Indices())
	require.NoError(t, b.Validate(10))
	assert.ErrorIs(t, b.Validate(11), ErrInvalidInputs)

	b.Bits[1] |= 0x01 // padding bit
	assert.ErrorIs(t, b.Validate(10), ErrInvalidInputs)

	assert.Panics(t, func() { b.Set(10) })
}
