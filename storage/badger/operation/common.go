package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/hotshot/storage"
)

// insert stores entity under key. Returns storage.ErrAlreadyExists if the key
// is taken.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key %x: %w", key, err)
		}
		return upsert(key, entity)(tx)
	}
}

// upsert stores entity under key, replacing any value stored before.
func upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		val, err := marshal(entity)
		if err != nil {
			return err
		}
		if err := tx.Set(key, val); err != nil {
			return fmt.Errorf("could not store key %x: %w", key, err)
		}
		return nil
	}
}

func exists(key []byte, found *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			*found = false
		case err != nil:
			return fmt.Errorf("could not check key %x: %w", key, err)
		default:
			*found = true
		}
		return nil
	}
}

// retrieve decodes the value under key into entity, which must be a pointer.
// Returns storage.ErrNotFound for a missing key.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load key %x: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, entity)
		})
	}
}

// visitor is called for every key of a traversal. It returns the value to
// decode the item into and a function handling it afterwards, or a nil target
// to skip the item without loading its value.
type visitor func(key []byte) (target interface{}, handle func() error)

// traverse visits all keys with the prefix in ascending key order.
func traverse(prefix []byte, visit visitor) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("traversal without prefix")
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			target, handle := visit(key)
			if target == nil {
				continue
			}
			err := item.Value(func(val []byte) error {
				return unmarshal(val, target)
			})
			if err != nil {
				return fmt.Errorf("could not decode key %x: %w", key, err)
			}
			if err := handle(); err != nil {
				return err
			}
		}
		return nil
	}
}

// removeWhere deletes the keys with the prefix that match. Keys are collected
// before deleting, badger doesn't delete under an open iterator.
func removeWhere(prefix []byte, match func(key []byte) bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		var keys [][]byte
		it := tx.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if match(key) {
				keys = append(keys, key)
			}
		}
		it.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return fmt.Errorf("could not delete key %x: %w", key, err)
			}
		}
		return nil
	}
}
