package model

import (
	"fmt"
	"sort"
	"sync"
)

// VersionActivation switches to Version from View on.
type VersionActivation struct {
	View    View
	Version Version
}

// UpgradeLock resolves the protocol version active at a view. It combines a
// static, ordered activation table with the upgrade certificate decided at
// runtime, if any. Safe for concurrent use.
type UpgradeLock struct {
	table     []VersionActivation
	supported map[Version]struct{}

	mu      sync.RWMutex
	decided *UpgradeCertificate
}

// NewUpgradeLock builds a lock from the activation table. The table must start
// at the genesis view. `supported` lists versions an upgrade certificate may
// move to in addition to those of the table.
func NewUpgradeLock(table []VersionActivation, supported ...Version) (*UpgradeLock, error) {
	if len(table) == 0 {
		return nil, NewConfigurationErrorf("empty version table")
	}
	sorted := make([]VersionActivation, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].View < sorted[j].View })
	if sorted[0].View != GenesisView {
		return nil, NewConfigurationErrorf("version table starts at view %d, not at genesis", sorted[0].View)
	}
	set := make(map[Version]struct{}, len(sorted)+len(supported))
	for i, a := range sorted {
		if i > 0 {
			if a.View == sorted[i-1].View {
				return nil, NewConfigurationErrorf("two versions activate at view %d", a.View)
			}
			if a.Version.Less(sorted[i-1].Version) {
				return nil, NewConfigurationErrorf("version %s at view %d downgrades %s", a.Version, a.View, sorted[i-1].Version)
			}
		}
		set[a.Version] = struct{}{}
	}
	for _, v := range supported {
		set[v] = struct{}{}
	}
	return &UpgradeLock{table: sorted, supported: set}, nil
}

// StaticUpgradeLock runs a single version forever.
func StaticUpgradeLock(v Version) *UpgradeLock {
	lock, _ := NewUpgradeLock([]VersionActivation{{View: GenesisView, Version: v}})
	return lock
}

// Version returns the protocol version of the view.
//
// Expected error returns during normal operations:
//   - UnsupportedVersionError if the view is inside the gap of a decided
//     upgrade, or the upgrade moves to a version this node doesn't support
func (l *UpgradeLock) Version(view View) (Version, error) {
	l.mu.RLock()
	decided := l.decided
	l.mu.RUnlock()

	if decided != nil {
		data := decided.Data
		if view >= data.NewVersionFirstView {
			if _, ok := l.supported[data.NewVersion]; !ok {
				return Version{}, NewUnsupportedVersionErrorf(view, "upgrade to version %s is not supported", data.NewVersion)
			}
			return data.NewVersion, nil
		}
		if view > data.OldVersionLastView {
			return Version{}, NewUnsupportedVersionErrorf(view, "view is inside the upgrade window (%d, %d)",
				data.OldVersionLastView, data.NewVersionFirstView)
		}
	}
	return l.tableVersion(view), nil
}

// EpochsEnabled reports whether epochs are in effect at the view. A view
// without a resolvable version runs without epochs.
func (l *UpgradeLock) EpochsEnabled(view View) bool {
	v, err := l.Version(view)
	return err == nil && v.AtLeast(EpochVersion)
}

// UpgradedDrbAndHeader reports whether the raised DRB difficulty applies.
func (l *UpgradeLock) UpgradedDrbAndHeader(view View) bool {
	v, err := l.Version(view)
	return err == nil && v.AtLeast(DrbAndHeaderVersion)
}

func (l *UpgradeLock) Supports(v Version) bool {
	_, ok := l.supported[v]
	return ok
}

func (l *UpgradeLock) DecidedUpgradeCertificate() *UpgradeCertificate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.decided
}

// SetDecidedUpgradeCertificate installs the upgrade certificate reached by a decide.
func (l *UpgradeLock) SetDecidedUpgradeCertificate(cert *UpgradeCertificate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decided = cert
}

func (l *UpgradeLock) tableVersion(view View) Version {
	i := sort.Search(len(l.table), func(i int) bool { return l.table[i].View > view })
	return l.table[i-1].Version
}

func (a VersionActivation) String() string {
	return fmt.Sprintf("%s@%d", a.Version, a.View)
}
