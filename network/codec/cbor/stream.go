package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encoder implements a stream encoder for CBOR. Every envelope is written
// as a CBOR byte string.
type Encoder struct {
	codec *Codec
	enc   *cbor.Encoder
}

// Encode will encode the given message and write the envelope to the stream.
func (e *Encoder) Encode(v interface{}) error {
	data, err := e.codec.Encode(v)
	if err != nil {
		return err
	}
	err = e.enc.Encode(data)
	if err != nil {
		return fmt.Errorf("could not write envelope: %w", err)
	}
	return nil
}

// Decoder implements a stream decoder for CBOR.
type Decoder struct {
	codec *Codec
	dec   *cbor.Decoder
}

// Decode will decode the next envelope from the stream.
func (d *Decoder) Decode() (interface{}, error) {

	// read from stream and extract code
	var data []byte
	err := d.dec.Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("could not decode envelope; len(data)=%d: %w", len(data), err)
	}
	return d.codec.Decode(data)
}
