package cbor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/onflow/hotshot/network/codec"
)

// Codec encodes consensus messages as an envelope: one byte message code
// followed by the CBOR encoding of the message.
type Codec struct {
	enc cbor.EncMode
}

// NewCodec returns a codec with canonical encoding, so equal messages encode
// to equal bytes.
func NewCodec() *Codec {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not initialize cbor encoding mode: %s", err))
	}
	return &Codec{enc: enc}
}

// Encode encodes v into the envelope. It errors for types without message code.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	code, what, err := codec.MessageCodeFromInterface(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine envelope code: %w", err)
	}

	var data bytes.Buffer
	data.WriteByte(code)
	err = c.enc.NewEncoder(&data).Encode(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode CBOR payload with envelope code %d AKA %s: %w", code, what, err)
	}
	return data.Bytes(), nil
}

// Decode decodes an envelope into a pointer to the message it carries.
//
// Expected error returns during normal operations:
//   - codec.ErrInvalidEncoding for an empty envelope
//   - codec.UnknownCodeError for an unknown message code
//   - codec.PayloadError if the payload doesn't decode into the message type
func (c *Codec) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty envelope: %w", codec.ErrInvalidEncoding)
	}
	code := data[0] // only first byte

	v, what, err := codec.InterfaceFromMessageCode(code)
	if err != nil {
		return nil, fmt.Errorf("could not determine interface from code: %w", err)
	}

	err = cbor.Unmarshal(data[1:], v) // all but first byte
	if err != nil {
		return nil, codec.NewPayloadError(code, what, err)
	}
	return v, nil
}

// NewEncoder returns an encoder writing length prefixed envelopes to w.
func (c *Codec) NewEncoder(w io.Writer) *Encoder {
	return &Encoder{codec: c, enc: c.enc.NewEncoder(w)}
}

// NewDecoder returns a decoder reading envelopes written by an Encoder from r.
func (c *Codec) NewDecoder(r io.Reader) *Decoder {
	return &Decoder{codec: c, dec: cbor.NewDecoder(r)}
}
