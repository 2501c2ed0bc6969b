package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned by reads of missing keys. The badger operations
	// translate badger.ErrKeyNotFound into it.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned by inserts of taken keys.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrDataMismatch is returned when a write conflicts with a different
	// value stored for a key that may only be written once.
	ErrDataMismatch = errors.New("data for key is different")
)
