package operation

import (
	"errors"
	"syscall"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/hotshot/storage"
)

// SkipDuplicates makes an insert of a taken key succeed without writing.
func SkipDuplicates(op func(*badger.Txn) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if err := op(tx); !errors.Is(err, storage.ErrAlreadyExists) {
			return err
		}
		return nil
	}
}

// RetryOnConflict runs op with update until it commits without a
// read-write conflict against a concurrent transaction.
func RetryOnConflict(update func(func(*badger.Txn) error) error, op func(*badger.Txn) error) error {
	for {
		err := update(op)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

// TerminateOnFullDisk panics if err reports a full disk, otherwise returns err.
func TerminateOnFullDisk(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		panic("disk full, terminating replica: " + err.Error())
	}
	return err
}
