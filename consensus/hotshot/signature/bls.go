package signature

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/crypto/sha3"
)

// BLS on the BN256 curve: public keys live on G2, signatures on G1, so that
// signatures over the same message aggregate by point addition.
var suite = bn256.NewSuite()

// PublicKey is the binary encoding of a BLS public key. It is comparable and
// can be used as a map key.
type PublicKey struct {
	raw string
}

// PublicKeyFromBytes decodes a public key and checks that it is a valid curve point.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return PublicKey{}, fmt.Errorf("%v: %w", err, ErrInvalidFormat)
	}
	return PublicKey{raw: string(b)}, nil
}

func (pk PublicKey) Bytes() []byte {
	return []byte(pk.raw)
}

func (pk PublicKey) IsZero() bool {
	return pk.raw == ""
}

func (pk PublicKey) String() string {
	return hex.EncodeToString([]byte(pk.raw))
}

// Less orders keys by their encoding; stake tables are sorted this way.
func (pk PublicKey) Less(o PublicKey) bool {
	return pk.raw < o.raw
}

// MarshalBinary lets both the msgpack and the cbor codecs carry keys as byte strings.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return []byte(pk.raw), nil
}

func (pk *PublicKey) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		pk.raw = ""
		return nil
	}
	decoded, err := PublicKeyFromBytes(b)
	if err != nil {
		return err
	}
	*pk = decoded
	return nil
}

func (pk PublicKey) point() (kyber.Point, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary([]byte(pk.raw)); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidFormat)
	}
	return p, nil
}

// PrivateKey is a BLS secret scalar together with its public key.
type PrivateKey struct {
	scalar kyber.Scalar
	public PublicKey
}

func (sk *PrivateKey) PublicKey() PublicKey { return sk.public }

// Signature is the binary encoding of a point on G1.
type Signature []byte

func (s Signature) String() string { return hex.EncodeToString(s) }

// GenerateKeyPair draws a fresh key pair from the system randomness.
func GenerateKeyPair() (*PrivateKey, error) {
	x, X := bls.NewKeyPair(suite, random.New())
	return newPrivateKey(x, X)
}

// KeyPairFromSeed derives a key pair deterministically from a seed. Used by
// test networks and fixtures, where every node must know everyone's keys.
func KeyPairFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("empty seed: %w", ErrInvalidInputs)
	}
	h := sha3.Sum512(seed)
	x := suite.G2().Scalar().SetBytes(h[:])
	X := suite.G2().Point().Mul(x, nil)
	return newPrivateKey(x, X)
}

func newPrivateKey(x kyber.Scalar, X kyber.Point) (*PrivateKey, error) {
	raw, err := X.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not encode public key: %w", err)
	}
	return &PrivateKey{scalar: x, public: PublicKey{raw: string(raw)}}, nil
}

// Sign signs the message under the given domain tag.
func Sign(sk *PrivateKey, tag string, msg []byte) (Signature, error) {
	if sk == nil || sk.scalar == nil {
		return nil, fmt.Errorf("missing private key: %w", ErrInvalidInputs)
	}
	sig, err := bls.Sign(suite, sk.scalar, tagged(tag, msg))
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return sig, nil
}

// Verify checks a single signature. It returns ErrInvalidSignature for a
// well-formed but wrong signature, and ErrInvalidFormat for undecodable inputs.
func Verify(pk PublicKey, tag string, msg []byte, sig Signature) error {
	p, err := pk.point()
	if err != nil {
		return err
	}
	return verifyPoint(p, tag, msg, sig)
}

func verifyPoint(p kyber.Point, tag string, msg []byte, sig Signature) error {
	if len(sig) == 0 {
		return fmt.Errorf("empty signature: %w", ErrInvalidFormat)
	}
	if err := bls.Verify(suite, p, tagged(tag, msg), sig); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidSignature)
	}
	return nil
}

func tagged(tag string, msg []byte) []byte {
	out := make([]byte, 0, len(tag)+len(msg))
	out = append(out, tag...)
	return append(out, msg...)
}
