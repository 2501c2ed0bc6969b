package model

import (
	"fmt"
)

// Version is a protocol version. Behaviour that changes across upgrades is
// gated on the version active at a view, never on wall-clock time.
type Version struct {
	Major uint16
	Minor uint16
}

var (
	// BaseVersion is the version without epochs: a static stake table and
	// the three-chain decide rule.
	BaseVersion = Version{Major: 0, Minor: 1}
	// EpochVersion enables epochs, extended QCs and the two-chain decide rule.
	EpochVersion = Version{Major: 0, Minor: 3}
	// DrbAndHeaderVersion raises the DRB difficulty.
	DrbAndHeaderVersion = Version{Major: 0, Minor: 4}
)

func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// AtLeast reports v >= o.
func (v Version) AtLeast(o Version) bool { return v.Compare(o) >= 0 }

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	var v Version
	if _, err := fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor); err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}
