package committees

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/onflow/hotshot/consensus/hotshot"
	"github.com/onflow/hotshot/consensus/hotshot/committees/leader"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// selectionCacheSize bounds the number of epochs with a prepared leader schedule.
const selectionCacheSize = 16

type epochTables struct {
	quorum model.StakeTable
	da     model.StakeTable
}

// StaticMembership is an in-memory Membership. Until told otherwise by
// AddEpochStakeTable, every epoch inherits the committee of the newest epoch
// before it, down to the genesis committee.
type StaticMembership struct {
	genesis epochTables

	mu         sync.RWMutex
	tables     map[model.Epoch]epochTables
	drbs       map[model.Epoch]model.DrbResult
	roots      map[model.Epoch]model.BlockHeader
	firstEpoch model.Epoch

	selections *lru.Cache[model.Epoch, *leader.LeaderSelection]
}

var _ hotshot.Membership = (*StaticMembership)(nil)

// NewStaticMembership creates a membership serving the genesis committee for
// model.NoEpoch.
func NewStaticMembership(quorum, da model.StakeTable) (*StaticMembership, error) {
	if len(quorum) == 0 {
		return nil, model.NewConfigurationErrorf("empty genesis stake table")
	}
	selections, err := lru.New[model.Epoch, *leader.LeaderSelection](selectionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create leader selection cache: %w", err)
	}
	return &StaticMembership{
		genesis:    epochTables{quorum: quorum, da: da},
		tables:     make(map[model.Epoch]epochTables),
		drbs:       make(map[model.Epoch]model.DrbResult),
		roots:      make(map[model.Epoch]model.BlockHeader),
		selections: selections,
	}, nil
}

func (m *StaticMembership) StakeTable(epoch model.Epoch) (model.StakeTable, error) {
	t, err := m.epochTables(epoch)
	if err != nil {
		return nil, err
	}
	return t.quorum, nil
}

func (m *StaticMembership) DaStakeTable(epoch model.Epoch) (model.StakeTable, error) {
	t, err := m.epochTables(epoch)
	if err != nil {
		return nil, err
	}
	return t.da, nil
}

func (m *StaticMembership) epochTables(epoch model.Epoch) (epochTables, error) {
	if epoch == model.NoEpoch {
		return m.genesis, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[epoch]
	if !ok {
		return epochTables{}, model.NewUnknownEpochErrorf(epoch, "no stake table")
	}
	return t, nil
}

func (m *StaticMembership) Leader(view model.View, epoch model.Epoch) (signature.PublicKey, error) {
	if selection, ok := m.selections.Get(epoch); ok {
		return selection.LeaderForView(view), nil
	}

	t, err := m.epochTables(epoch)
	if err != nil {
		return signature.PublicKey{}, err
	}
	var drb *model.DrbResult
	if epoch != model.NoEpoch {
		result, err := m.EpochDrbResult(epoch)
		if err != nil {
			return signature.PublicKey{}, err
		}
		drb = &result
	}
	selection, err := leader.ComputeLeaderSelection(t.quorum, drb)
	if err != nil {
		return signature.PublicKey{}, fmt.Errorf("could not compute leader selection for epoch %s: %w", epoch, err)
	}
	m.selections.Add(epoch, selection)
	return selection.LeaderForView(view), nil
}

func (m *StaticMembership) HasStakeTable(epoch model.Epoch) bool {
	_, err := m.epochTables(epoch)
	return err == nil
}

func (m *StaticMembership) HasRandomizedStakeTable(epoch model.Epoch) bool {
	if epoch == model.NoEpoch {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, hasTable := m.tables[epoch]
	_, hasDrb := m.drbs[epoch]
	return hasTable && hasDrb
}

func (m *StaticMembership) AddEpochStakeTable(epoch model.Epoch, quorum, da model.StakeTable) error {
	if epoch == model.NoEpoch {
		return fmt.Errorf("genesis stake table can't be replaced")
	}
	if len(quorum) == 0 {
		return fmt.Errorf("empty stake table for epoch %s", epoch)
	}
	m.mu.Lock()
	m.tables[epoch] = epochTables{quorum: quorum, da: da}
	m.mu.Unlock()
	m.selections.Remove(epoch)
	return nil
}

// AddEpochRoot records the root header. The epoch inherits the committee of
// the newest known epoch before it, unless its stake table is already known.
func (m *StaticMembership) AddEpochRoot(_ context.Context, epoch model.Epoch, header model.BlockHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots[epoch] = header
	if _, ok := m.tables[epoch]; ok {
		return nil
	}
	inherited := m.genesis
	for e := epoch.Prev(); e != model.NoEpoch; e = e.Prev() {
		if t, ok := m.tables[e]; ok {
			inherited = t
			break
		}
	}
	m.tables[epoch] = inherited
	return nil
}

// EpochRoot returns the root header registered for the epoch.
func (m *StaticMembership) EpochRoot(epoch model.Epoch) (model.BlockHeader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.roots[epoch]
	return h, ok
}

func (m *StaticMembership) AddDrbResult(epoch model.Epoch, result model.DrbResult) {
	m.mu.Lock()
	m.drbs[epoch] = result
	m.mu.Unlock()
	m.selections.Remove(epoch)
}

func (m *StaticMembership) EpochDrbResult(epoch model.Epoch) (model.DrbResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.drbs[epoch]
	if !ok {
		return model.DrbResult{}, model.NewUnknownEpochErrorf(epoch, "no drb result")
	}
	return result, nil
}

func (m *StaticMembership) SetFirstEpoch(epoch model.Epoch, initialDrb model.DrbResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.firstEpoch = epoch
	for _, e := range []model.Epoch{epoch, epoch.Next()} {
		if _, ok := m.tables[e]; !ok {
			m.tables[e] = m.genesis
		}
		m.drbs[e] = initialDrb
		m.selections.Remove(e)
	}
}

func (m *StaticMembership) FirstEpoch() (model.Epoch, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.firstEpoch, m.firstEpoch != model.NoEpoch
}
