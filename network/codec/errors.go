package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned for envelopes too short to carry a message code.
var ErrInvalidEncoding = errors.New("invalid encoding")

// UnknownCodeError is returned for envelopes whose first byte isn't a known message code.
type UnknownCodeError struct {
	Code uint8
}

func NewUnknownCodeError(code uint8) error {
	return UnknownCodeError{Code: code}
}

func (e UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown message code %d", e.Code)
}

func IsUnknownCodeError(err error) bool {
	var e UnknownCodeError
	return errors.As(err, &e)
}

// UnsupportedTypeError is returned when encoding a value that has no message code.
type UnsupportedTypeError struct {
	Type string
}

func NewUnsupportedTypeError(v interface{}) error {
	return UnsupportedTypeError{Type: fmt.Sprintf("%T", v)}
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no message code for %s", e.Type)
}

func IsUnsupportedTypeError(err error) bool {
	var e UnsupportedTypeError
	return errors.As(err, &e)
}

// PayloadError is returned when the payload of an envelope doesn't decode
// into the message its code names.
type PayloadError struct {
	Code    uint8
	Message string
	err     error
}

func NewPayloadError(code uint8, message string, err error) error {
	return PayloadError{Code: code, Message: message, err: err}
}

func (e PayloadError) Error() string {
	return fmt.Sprintf("could not decode %s (code %d): %v", e.Message, e.Code, e.err)
}

func (e PayloadError) Unwrap() error { return e.err }

func IsPayloadError(err error) bool {
	var e PayloadError
	return errors.As(err, &e)
}
