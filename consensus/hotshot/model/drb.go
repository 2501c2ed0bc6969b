package model

import (
	"encoding/hex"
)

// DrbResult is the output of the randomness beacon for an epoch; it seeds
// the leader schedule of that epoch.
type DrbResult [32]byte

// InitialDrbResult seeds the first two epochs, which have no decided epoch
// root to derive a result from.
var InitialDrbResult DrbResult

func (r DrbResult) String() string { return hex.EncodeToString(r[:]) }

// DrbInput is the resumable state of a DRB computation: Value holds the hash
// after Iteration rounds of the DifficultyLevel in total.
type DrbInput struct {
	Epoch           Epoch
	Iteration       uint64
	Value           [32]byte
	DifficultyLevel uint64
}

// DrbSeedFromSignatures derives the DRB seed of an epoch root from the
// signatures of the QC that justified it: the first 32 bytes of the
// aggregated signature, zero padded.
func DrbSeedFromSignatures(qc *QuorumCertificate2) [32]byte {
	var seed [32]byte
	if qc == nil || qc.Signatures == nil {
		return seed
	}
	copy(seed[:], qc.Signatures.Signature)
	return seed
}
