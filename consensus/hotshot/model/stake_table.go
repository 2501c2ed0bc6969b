package model

import (
	"sort"

	"github.com/onflow/hotshot/consensus/hotshot/signature"
)

// StakeTableEntry is one voter of an epoch: its signing key and stake.
type StakeTableEntry struct {
	Key   signature.PublicKey
	Stake uint64
}

// StakeTable is the ordered list of voters of an epoch. The order defines the
// signer positions in aggregated signatures, so all nodes must agree on it;
// tables built with NewStakeTable are sorted by key.
type StakeTable []StakeTableEntry

// NewStakeTable copies the entries into canonical order. Zero-stake entries
// are dropped: they can neither vote nor lead.
func NewStakeTable(entries ...StakeTableEntry) StakeTable {
	st := make(StakeTable, 0, len(entries))
	for _, e := range entries {
		if e.Stake > 0 {
			st = append(st, e)
		}
	}
	sort.Slice(st, func(i, j int) bool { return st[i].Key.Less(st[j].Key) })
	return st
}

func (st StakeTable) TotalStake() uint64 {
	var total uint64
	for _, e := range st {
		total += e.Stake
	}
	return total
}

// Lookup returns the entry of the key and its position in the table.
func (st StakeTable) Lookup(key signature.PublicKey) (StakeTableEntry, int, bool) {
	for i, e := range st {
		if e.Key == key {
			return e, i, true
		}
	}
	return StakeTableEntry{}, -1, false
}

func (st StakeTable) Contains(key signature.PublicKey) bool {
	_, _, ok := st.Lookup(key)
	return ok
}

func (st StakeTable) Keys() []signature.PublicKey {
	keys := make([]signature.PublicKey, 0, len(st))
	for _, e := range st {
		keys = append(keys, e.Key)
	}
	return keys
}

// WeightedKeys is the crypto view of the table, in table order.
func (st StakeTable) WeightedKeys() []signature.WeightedKey {
	out := make([]signature.WeightedKey, 0, len(st))
	for _, e := range st {
		out = append(out, signature.WeightedKey{Key: e.Key, Weight: e.Stake})
	}
	return out
}

// Commit binds the table order, keys and stakes. Light client state updates
// sign this to hand over the next epoch's table.
func (st StakeTable) Commit() Commitment {
	b := NewCommitmentBuilder("Stake table").U64Field("len", uint64(len(st)))
	for _, e := range st {
		b.VarSizeField("key", e.Key.Bytes()).U64Field("stake", e.Stake)
	}
	return b.Finalize()
}
