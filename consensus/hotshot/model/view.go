package model

import (
	"strconv"
)

// View is the number of a single round of consensus with one designated leader.
type View uint64

// GenesisView is the view of the genesis leaf. Certificates for it are valid
// without signatures.
const GenesisView View = 0

func (v View) Next() View { return v + 1 }

// Prev returns the previous view, saturating at genesis.
func (v View) Prev() View {
	if v == GenesisView {
		return GenesisView
	}
	return v - 1
}

func (v View) String() string { return strconv.FormatUint(uint64(v), 10) }

// Epoch numbers a fixed-length run of blocks sharing one stake table. Epochs
// are numbered from 1; the zero value NoEpoch means epochs are not in effect.
type Epoch uint64

const NoEpoch Epoch = 0

// IsSome reports whether the epoch is set.
func (e Epoch) IsSome() bool { return e != NoEpoch }

// Next returns the following epoch. The successor of NoEpoch is NoEpoch.
func (e Epoch) Next() Epoch {
	if e == NoEpoch {
		return NoEpoch
	}
	return e + 1
}

// Prev returns the preceding epoch, or NoEpoch below the first epoch.
func (e Epoch) Prev() Epoch {
	if e <= 1 {
		return NoEpoch
	}
	return e - 1
}

func (e Epoch) String() string {
	if e == NoEpoch {
		return "none"
	}
	return strconv.FormatUint(uint64(e), 10)
}

// HasViewNumber is implemented by everything bound to a view: votes,
// certificates, proposals and VID shares.
type HasViewNumber interface {
	View() View
}

// HasEpoch is implemented by vote data and certificates that are bound to an
// epoch's stake table.
type HasEpoch interface {
	DataEpoch() Epoch
}
