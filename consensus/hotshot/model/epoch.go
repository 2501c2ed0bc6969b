package model

// Epoch arithmetic over block numbers. Epochs are numbered from 1 and cover
// epochHeight consecutive blocks: epoch 1 holds blocks 1..h, epoch 2 blocks
// h+1..2h and so on. Block 0 is the genesis block and belongs to epoch 1.
//
// The last three blocks of an epoch form its transition: the first of them is
// the transition block, certified by both committees, and the last block of
// the epoch closes it. The epoch root sits two blocks before the transition
// block; the stake table of epoch e+2 is derived from the root of epoch e.
// All predicates are false for block 0 and for epochHeight 0.

// EpochFromBlockNumber returns the epoch containing the block, or NoEpoch
// when epochs are disabled (epochHeight 0).
func EpochFromBlockNumber(blockNumber, epochHeight uint64) Epoch {
	switch {
	case epochHeight == 0:
		return NoEpoch
	case blockNumber == 0:
		return 1
	case blockNumber%epochHeight == 0:
		return Epoch(blockNumber / epochHeight)
	default:
		return Epoch(blockNumber/epochHeight + 1)
	}
}

// OptionEpochFromBlockNumber is EpochFromBlockNumber for leaves that may
// predate epochs.
func OptionEpochFromBlockNumber(withEpoch bool, blockNumber, epochHeight uint64) Epoch {
	if !withEpoch {
		return NoEpoch
	}
	return EpochFromBlockNumber(blockNumber, epochHeight)
}

// RootBlockInEpoch returns the epoch root block of the epoch.
func RootBlockInEpoch(epoch Epoch, epochHeight uint64) uint64 {
	if epochHeight == 0 || epoch == NoEpoch {
		return 0
	}
	return epochHeight*uint64(epoch) - 5
}

// TransitionBlockForEpoch returns the first transition block of the epoch.
func TransitionBlockForEpoch(epoch Epoch, epochHeight uint64) uint64 {
	if epochHeight == 0 || epoch == NoEpoch {
		return 0
	}
	return epochHeight*uint64(epoch) - 3
}

// IsTransitionBlock reports whether the block is the first block of an epoch
// transition, the one certified by an extended QC.
func IsTransitionBlock(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return (blockNumber+3)%epochHeight == 0
}

// IsFirstTransitionBlock reports whether the block directly follows the
// transition block.
func IsFirstTransitionBlock(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return blockNumber%epochHeight == epochHeight-2
}

// IsEpochTransition reports whether the block is one of the transition blocks
// including the last block of the epoch.
func IsEpochTransition(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	rem := blockNumber % epochHeight
	return rem >= epochHeight-3 || rem == 0
}

// IsLastBlock reports whether the block closes its epoch.
func IsLastBlock(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return blockNumber%epochHeight == 0
}

// IsMiddleTransitionBlock reports whether the block lies strictly between the
// transition block and the last block of the epoch.
func IsMiddleTransitionBlock(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	left := epochHeight - blockNumber%epochHeight
	return left == 1 || left == 2
}

// IsEpochRoot reports whether the block is the root block of its epoch.
func IsEpochRoot(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return (blockNumber+5)%epochHeight == 0
}

// IsGeEpochRoot reports whether the block is at or after its epoch's root.
func IsGeEpochRoot(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return blockNumber%epochHeight == 0 || blockNumber%epochHeight >= epochHeight-5
}

// IsGtEpochRoot reports whether the block is after its epoch's root.
func IsGtEpochRoot(blockNumber, epochHeight uint64) bool {
	if blockNumber == 0 || epochHeight == 0 {
		return false
	}
	return blockNumber%epochHeight == 0 || blockNumber%epochHeight > epochHeight-5
}
