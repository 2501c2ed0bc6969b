package signature

import (
	"errors"
)

var (
	ErrInvalidFormat      = errors.New("invalid signature format")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInsufficientWeight = errors.New("insufficient signer weight")

	ErrInvalidInputs    = errors.New("invalid inputs")
	ErrDuplicatedSigner = errors.New("duplicated signer")
	ErrUnknownSigner    = errors.New("signer is not part of the stake table")
)
