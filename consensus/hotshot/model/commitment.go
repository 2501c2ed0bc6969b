package model

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Commitment is a SHA3-256 digest binding a value.
type Commitment [32]byte

// VidCommitment commits to a dispersed block payload.
type VidCommitment = Commitment

// ZeroCommitment is the commitment of nothing; it is never produced by a builder.
var ZeroCommitment Commitment

func (c Commitment) String() string { return hex.EncodeToString(c[:]) }

func (c Commitment) IsZero() bool { return c == ZeroCommitment }

// Committable is implemented by every value that has a canonical commitment.
type Committable interface {
	Commit() Commitment
}

// CommitmentBuilder hashes a value field by field. Every field is prefixed
// by its name and every variable-sized field by its length, so distinct
// layouts never collide.
type CommitmentBuilder struct {
	h hash.Hash
}

// NewCommitmentBuilder starts a commitment for a value of the given kind.
func NewCommitmentBuilder(tag string) *CommitmentBuilder {
	b := &CommitmentBuilder{h: sha3.New256()}
	return b.Constant(tag)
}

// Constant writes a fixed string, length prefixed.
func (b *CommitmentBuilder) Constant(s string) *CommitmentBuilder {
	b.u64(uint64(len(s)))
	_, _ = b.h.Write([]byte(s))
	return b
}

func (b *CommitmentBuilder) U64Field(name string, v uint64) *CommitmentBuilder {
	b.Constant(name)
	b.u64(v)
	return b
}

func (b *CommitmentBuilder) U16Field(name string, v uint16) *CommitmentBuilder {
	b.Constant(name)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, _ = b.h.Write(buf[:])
	return b
}

func (b *CommitmentBuilder) Field(name string, c Commitment) *CommitmentBuilder {
	b.Constant(name)
	_, _ = b.h.Write(c[:])
	return b
}

func (b *CommitmentBuilder) FixedSizeField(name string, data []byte) *CommitmentBuilder {
	b.Constant(name)
	_, _ = b.h.Write(data)
	return b
}

func (b *CommitmentBuilder) VarSizeField(name string, data []byte) *CommitmentBuilder {
	b.Constant(name)
	b.u64(uint64(len(data)))
	_, _ = b.h.Write(data)
	return b
}

// OptionalField writes the commitment only when present; absent optional
// fields leave the digest untouched, so an upgraded value without the new
// fields commits exactly like its predecessor.
func (b *CommitmentBuilder) OptionalField(name string, c *Commitment) *CommitmentBuilder {
	if c != nil {
		b.Field(name, *c)
	}
	return b
}

func (b *CommitmentBuilder) OptionalU64Field(name string, v *uint64) *CommitmentBuilder {
	if v != nil {
		b.U64Field(name, *v)
	}
	return b
}

func (b *CommitmentBuilder) EpochField(e Epoch) *CommitmentBuilder {
	if e.IsSome() {
		b.U64Field("epoch", uint64(e))
	}
	return b
}

func (b *CommitmentBuilder) Finalize() Commitment {
	var c Commitment
	copy(c[:], b.h.Sum(nil))
	return c
}

func (b *CommitmentBuilder) u64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = b.h.Write(buf[:])
}
