package operation

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v4"
)

// errCorruptValue marks stored values that aren't valid snappy blocks.
var errCorruptValue = errors.New("corrupt value")

// Values are msgpack encoded and snappy compressed, always.
func marshal(entity interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", entity, err)
	}
	return snappy.Encode(nil, raw), nil
}

func unmarshal(val []byte, entity interface{}) error {
	raw, err := snappy.Decode(nil, val)
	if err != nil {
		return fmt.Errorf("%w: %v", errCorruptValue, err)
	}
	if err := msgpack.Unmarshal(raw, entity); err != nil {
		return fmt.Errorf("could not decode %T: %w", entity, err)
	}
	return nil
}
