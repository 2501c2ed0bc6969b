package signature

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/bls"
)

// WeightedKey is the crypto view of a stake table entry.
type WeightedKey struct {
	Key    PublicKey
	Weight uint64
}

// PublicParameter is derived from an ordered stake table and a threshold. It
// is what aggregated signatures are checked against: signer positions in a
// QuorumSignature index into Keys.
type PublicParameter struct {
	Keys      []WeightedKey
	Threshold uint64
	points    []kyber.Point
}

// NewPublicParameter decodes the keys of the stake table once, so that repeated
// certificate checks against the same table don't pay for point decoding.
func NewPublicParameter(keys []WeightedKey, threshold uint64) (*PublicParameter, error) {
	points := make([]kyber.Point, 0, len(keys))
	for i, k := range keys {
		p, err := k.Key.point()
		if err != nil {
			return nil, fmt.Errorf("could not decode key at position %d: %w", i, err)
		}
		points = append(points, p)
	}
	return &PublicParameter{Keys: keys, Threshold: threshold, points: points}, nil
}

// QuorumSignature is an aggregated BLS signature together with the bitmap of
// the stake table positions that contributed to it.
type QuorumSignature struct {
	Signers   SignerBitmap
	Signature Signature
}

// Assemble aggregates the signatures of the signers marked in the bitmap. The
// signatures must be given in any order, one per set bit; they are not verified here.
func Assemble(pp *PublicParameter, signers SignerBitmap, sigs []Signature) (*QuorumSignature, error) {
	if err := signers.Validate(len(pp.Keys)); err != nil {
		return nil, err
	}
	if signers.Count() != len(sigs) {
		return nil, fmt.Errorf("bitmap marks %d signers but %d signatures were given: %w", signers.Count(), len(sigs), ErrInvalidInputs)
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures to aggregate: %w", ErrInvalidInputs)
	}
	raw := make([][]byte, 0, len(sigs))
	for _, s := range sigs {
		raw = append(raw, s)
	}
	agg, err := bls.AggregateSignatures(suite, raw...)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidFormat)
	}
	bits := make([]byte, len(signers.Bits))
	copy(bits, signers.Bits)
	return &QuorumSignature{
		Signers:   SignerBitmap{Bits: bits, Len: signers.Len},
		Signature: agg,
	}, nil
}

// Check verifies an aggregated signature against the public parameter: the
// signers must carry at least the threshold weight and the aggregate must
// verify under the sum of their keys.
//
// Expected error returns during normal operations:
//   - ErrInvalidInputs if the bitmap doesn't match the stake table
//   - ErrInsufficientWeight if the signers' weight is below the threshold
//   - ErrInvalidSignature / ErrInvalidFormat if the aggregate doesn't verify
func Check(pp *PublicParameter, tag string, msg []byte, qs *QuorumSignature) error {
	if qs == nil {
		return fmt.Errorf("missing aggregated signature: %w", ErrInvalidInputs)
	}
	if err := qs.Signers.Validate(len(pp.Keys)); err != nil {
		return err
	}
	var weight uint64
	keys := make([]kyber.Point, 0, qs.Signers.Count())
	for _, i := range qs.Signers.Indices() {
		weight += pp.Keys[i].Weight
		keys = append(keys, pp.points[i])
	}
	if weight < pp.Threshold {
		return fmt.Errorf("signers hold weight %d, need %d: %w", weight, pp.Threshold, ErrInsufficientWeight)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no signers: %w", ErrInsufficientWeight)
	}
	return verifyPoint(bls.AggregatePublicKeys(suite, keys...), tag, msg, qs.Signature)
}
