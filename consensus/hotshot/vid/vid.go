// Package vid disperses block payloads to a committee. A payload is
// erasure-coded into one shard per recipient, so that any third of the
// shards reconstructs it, and bound by a commitment over all shard hashes.
package vid

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// MaxRecipients is the largest committee a payload can be dispersed to.
const MaxRecipients = 256

var (
	ErrNoRecipients     = errors.New("no recipients")
	ErrTooManyShares    = errors.New("too many recipients")
	ErrInvalidShare     = errors.New("invalid vid share")
	ErrNotEnoughShares  = errors.New("not enough shares to recover payload")
	ErrMismatchedShares = errors.New("shares belong to different dispersals")
)

// Dispersal is the result of dispersing one payload: the commitment and one
// share per recipient, in recipient order.
type Dispersal struct {
	Commitment model.VidCommitment
	Shares     []*model.VidDisperseShare
}

// DataShards returns the number of shards needed to recover a payload
// dispersed to n recipients.
func DataShards(n int) int {
	return (n + 2) / 3
}

// Disperse erasure-codes the payload for the recipients. Epoch is the epoch
// of the block, targetEpoch the epoch whose committee the recipients are.
func Disperse(payload []byte, recipients []signature.PublicKey, view model.View, epoch, targetEpoch model.Epoch) (*Dispersal, error) {
	n := len(recipients)
	if n == 0 {
		return nil, ErrNoRecipients
	}
	if n > MaxRecipients {
		return nil, fmt.Errorf("%d recipients, at most %d supported: %w", n, MaxRecipients, ErrTooManyShares)
	}

	shards, err := encode(payload, n)
	if err != nil {
		return nil, err
	}
	hashes := make([]model.Commitment, n)
	for i, shard := range shards {
		hashes[i] = shardHash(shard)
	}
	data := DataShards(n)
	commit := Commitment(hashes, uint32(data), uint64(len(payload)))

	shares := make([]*model.VidDisperseShare, n)
	for i, recipient := range recipients {
		shares[i] = &model.VidDisperseShare{
			ViewNumber:        view,
			PayloadCommitment: commit,
			Share:             shards[i],
			ShareIndex:        uint32(i),
			ShardHashes:       hashes,
			DataShards:        uint32(data),
			PayloadSize:       uint64(len(payload)),
			RecipientKey:      recipient,
			Epoch:             epoch,
			TargetEpoch:       targetEpoch,
		}
	}
	return &Dispersal{Commitment: commit, Shares: shares}, nil
}

// PayloadCommitment computes the commitment of the payload dispersed to n
// recipients, without keeping the shares.
func PayloadCommitment(payload []byte, n int) (model.VidCommitment, error) {
	if n == 0 {
		return model.ZeroCommitment, ErrNoRecipients
	}
	if n > MaxRecipients {
		return model.ZeroCommitment, fmt.Errorf("%d recipients, at most %d supported: %w", n, MaxRecipients, ErrTooManyShares)
	}
	shards, err := encode(payload, n)
	if err != nil {
		return model.ZeroCommitment, err
	}
	hashes := make([]model.Commitment, n)
	for i, shard := range shards {
		hashes[i] = shardHash(shard)
	}
	return Commitment(hashes, uint32(DataShards(n)), uint64(len(payload))), nil
}

// Commitment binds the shard hashes of a dispersal and its layout.
func Commitment(hashes []model.Commitment, dataShards uint32, payloadSize uint64) model.VidCommitment {
	b := model.NewCommitmentBuilder("VID commitment").
		U64Field("payload_size", payloadSize).
		U64Field("data_shards", uint64(dataShards)).
		U64Field("num_shards", uint64(len(hashes)))
	for _, h := range hashes {
		b.Field("shard", h)
	}
	return b.Finalize()
}

// VerifyShare checks that the share is part of the dispersal its payload
// commitment names.
//
// Expected error returns during normal operations:
//   - ErrInvalidShare if the share doesn't match the commitment
func VerifyShare(share *model.VidDisperseShare) error {
	n := len(share.ShardHashes)
	if n == 0 || n > MaxRecipients {
		return fmt.Errorf("share for view %d lists %d shard hashes: %w", share.ViewNumber, n, ErrInvalidShare)
	}
	if int(share.ShareIndex) >= n {
		return fmt.Errorf("share index %d out of range [0, %d): %w", share.ShareIndex, n, ErrInvalidShare)
	}
	if int(share.DataShards) != DataShards(n) {
		return fmt.Errorf("%d data shards for %d recipients: %w", share.DataShards, n, ErrInvalidShare)
	}
	if Commitment(share.ShardHashes, share.DataShards, share.PayloadSize) != share.PayloadCommitment {
		return fmt.Errorf("shard hashes don't match payload commitment %s: %w", share.PayloadCommitment, ErrInvalidShare)
	}
	if shardHash(share.Share) != share.ShardHashes[share.ShareIndex] {
		return fmt.Errorf("shard %d doesn't match its hash: %w", share.ShareIndex, ErrInvalidShare)
	}
	return nil
}

// Recover reconstructs the payload from shares of the same dispersal. Any
// DataShards verified shares suffice.
//
// Expected error returns during normal operations:
//   - ErrInvalidShare if a share fails verification
//   - ErrMismatchedShares if the shares come from different dispersals
//   - ErrNotEnoughShares if fewer than DataShards distinct shares are given
func Recover(shares []*model.VidDisperseShare) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrNotEnoughShares
	}
	first := shares[0]
	n := len(first.ShardHashes)
	shards := make([][]byte, n)
	have := 0
	for _, share := range shares {
		if err := VerifyShare(share); err != nil {
			return nil, err
		}
		if share.PayloadCommitment != first.PayloadCommitment {
			return nil, fmt.Errorf("commitments %s and %s: %w", first.PayloadCommitment, share.PayloadCommitment, ErrMismatchedShares)
		}
		if shards[share.ShareIndex] == nil {
			shards[share.ShareIndex] = share.Share
			have++
		}
	}
	data := int(first.DataShards)
	if have < data {
		return nil, fmt.Errorf("have %d of %d shards: %w", have, data, ErrNotEnoughShares)
	}

	if first.PayloadSize == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	if n == data {
		// no parity, every shard is present
		for _, shard := range shards {
			buf.Write(shard)
		}
		buf.Truncate(int(first.PayloadSize))
		return buf.Bytes(), nil
	}
	enc, err := reedsolomon.New(data, n-data)
	if err != nil {
		return nil, fmt.Errorf("could not create decoder: %w", err)
	}
	if err := enc.ReconstructData(shards); err != nil {
		return nil, fmt.Errorf("could not reconstruct payload: %w", err)
	}
	if err := enc.Join(&buf, shards, int(first.PayloadSize)); err != nil {
		return nil, fmt.Errorf("could not join shards: %w", err)
	}
	return buf.Bytes(), nil
}

// encode splits the payload into DataShards(n) data shards, padded to equal
// size, and adds the parity shards.
func encode(payload []byte, n int) ([][]byte, error) {
	data := DataShards(n)
	if len(payload) == 0 {
		shards := make([][]byte, n)
		for i := range shards {
			shards[i] = []byte{}
		}
		return shards, nil
	}
	if n == data {
		return split(payload, data), nil
	}
	enc, err := reedsolomon.New(data, n-data)
	if err != nil {
		return nil, fmt.Errorf("could not create encoder for %d recipients: %w", n, err)
	}
	// Split may reuse the payload's backing array
	shards, err := enc.Split(append([]byte(nil), payload...))
	if err != nil {
		return nil, fmt.Errorf("could not split payload: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("could not encode payload: %w", err)
	}
	return shards, nil
}

// split cuts the payload into data zero-padded shards of equal size.
func split(payload []byte, data int) [][]byte {
	size := (len(payload) + data - 1) / data
	padded := make([]byte, size*data)
	copy(padded, payload)
	shards := make([][]byte, data)
	for i := range shards {
		shards[i] = padded[i*size : (i+1)*size]
	}
	return shards
}

func shardHash(shard []byte) model.Commitment {
	return model.NewCommitmentBuilder("VID shard").VarSizeField("shard", shard).Finalize()
}
