package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

// InsertDrbResult stores the DRB result of an epoch. Returns
// storage.ErrAlreadyExists if a result is stored for the epoch.
func InsertDrbResult(epoch model.Epoch, result model.DrbResult) func(*badger.Txn) error {
	return insert(makePrefix(codeDrbResult, epoch), result)
}

func RetrieveDrbResult(epoch model.Epoch, result *model.DrbResult) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDrbResult, epoch), result)
}

// TraverseDrbResults calls handle for every stored DRB result in ascending
// epoch order.
func TraverseDrbResults(handle func(model.Epoch, model.DrbResult) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeDrbResult), func(key []byte) (interface{}, func() error) {
		epoch := epochFromKey(key)
		var result model.DrbResult
		return &result, func() error { return handle(epoch, result) }
	})
}

// UpsertEpochRoot stores the header of the root block of an epoch.
func UpsertEpochRoot(epoch model.Epoch, header model.BlockHeader) func(*badger.Txn) error {
	return upsert(makePrefix(codeEpochRoot, epoch), header)
}

func RetrieveEpochRoot(epoch model.Epoch, header *model.BlockHeader) func(*badger.Txn) error {
	return retrieve(makePrefix(codeEpochRoot, epoch), header)
}

// InsertDBVersion records the layout version of a new database.
func InsertDBVersion(version uint32) func(*badger.Txn) error {
	return insert(makePrefix(codeDBVersion), version)
}

func RetrieveDBVersion(version *uint32) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDBVersion), version)
}

// HasDBVersion reports whether a layout version was recorded.
func HasDBVersion(found *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeDBVersion), found)
}
