package model

import (
	"errors"
	"fmt"
)

var (
	// ErrViewAlreadyVoted is returned when asked to act on a view at or below
	// the latest view this replica has voted in.
	ErrViewAlreadyVoted = errors.New("view is not newer than the latest voted view")
	// ErrViewAlreadyProposed is returned when asked to propose for a view at
	// or below the latest proposed view.
	ErrViewAlreadyProposed = errors.New("view is not newer than the latest proposed view")
	// ErrStaleView is returned by monotonic state updates given an older view.
	ErrStaleView = errors.New("view is not newer than the current one")
	// ErrNotLeader is returned when a node is asked to propose in a view it doesn't lead.
	ErrNotLeader = errors.New("not the leader of the view")
	// ErrNotInCommittee is returned when a node has no stake in the relevant epoch.
	ErrNotInCommittee = errors.New("not a member of the committee")
)

// ConfigurationError indicates that a constructor or component was initialized with
// invalid or inconsistent parameters.
type ConfigurationError struct {
	err error
}

func NewConfigurationError(err error) error {
	return ConfigurationError{err}
}

func NewConfigurationErrorf(msg string, args ...interface{}) error {
	return ConfigurationError{fmt.Errorf(msg, args...)}
}

func (e ConfigurationError) Error() string { return e.err.Error() }
func (e ConfigurationError) Unwrap() error { return e.err }

// IsConfigurationError returns whether err is a ConfigurationError
func IsConfigurationError(err error) bool {
	var e ConfigurationError
	return errors.As(err, &e)
}

// UnsupportedVersionError indicates that no protocol version can be resolved
// for a view: it lies in the gap of a decided upgrade, or the upgrade targets a
// version this node does not run.
type UnsupportedVersionError struct {
	View View
	err  error
}

func NewUnsupportedVersionErrorf(view View, msg string, args ...interface{}) error {
	return UnsupportedVersionError{View: view, err: fmt.Errorf(msg, args...)}
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("no supported version for view %d: %s", e.View, e.err.Error())
}

func (e UnsupportedVersionError) Unwrap() error { return e.err }

// IsUnsupportedVersionError returns whether err is an UnsupportedVersionError
func IsUnsupportedVersionError(err error) bool {
	var e UnsupportedVersionError
	return errors.As(err, &e)
}

// InvalidVoteError indicates that a vote is invalid: bad signature, unknown
// signer, or data that doesn't match the view it's for.
type InvalidVoteError struct {
	View   View
	Signer string
	Err    error
}

func NewInvalidVoteErrorf(view View, signer fmt.Stringer, msg string, args ...interface{}) error {
	return InvalidVoteError{
		View:   view,
		Signer: signer.String(),
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e InvalidVoteError) Error() string {
	return fmt.Sprintf("invalid vote from %s for view %d: %s", shorten(e.Signer), e.View, e.Err.Error())
}

// IsInvalidVoteError returns whether an error is InvalidVoteError
func IsInvalidVoteError(err error) bool {
	var e InvalidVoteError
	return errors.As(err, &e)
}

func (e InvalidVoteError) Unwrap() error {
	return e.Err
}

// InvalidCertificateError indicates that a certificate failed validation.
type InvalidCertificateError struct {
	Kind string
	View View
	Err  error
}

func NewInvalidCertificateErrorf(kind string, view View, msg string, args ...interface{}) error {
	return InvalidCertificateError{
		Kind: kind,
		View: view,
		Err:  fmt.Errorf(msg, args...),
	}
}

func (e InvalidCertificateError) Error() string {
	return fmt.Sprintf("invalid %s certificate for view %d: %s", e.Kind, e.View, e.Err.Error())
}

// IsInvalidCertificateError returns whether an error is InvalidCertificateError
func IsInvalidCertificateError(err error) bool {
	var e InvalidCertificateError
	return errors.As(err, &e)
}

func (e InvalidCertificateError) Unwrap() error {
	return e.Err
}

// DuplicatedSignerError indicates that a signer contributed twice to the same
// aggregate. Vote accumulation treats repeated votes as a no-op instead.
type DuplicatedSignerError struct {
	err error
}

func NewDuplicatedSignerErrorf(msg string, args ...interface{}) error {
	return DuplicatedSignerError{err: fmt.Errorf(msg, args...)}
}

func (e DuplicatedSignerError) Error() string { return e.err.Error() }
func (e DuplicatedSignerError) Unwrap() error { return e.err }

// IsDuplicatedSignerError returns whether err is a DuplicatedSignerError
func IsDuplicatedSignerError(err error) bool {
	var e DuplicatedSignerError
	return errors.As(err, &e)
}

// InvalidSignerError indicates that the signer is not part of the stake table
// the vote or certificate is checked against.
type InvalidSignerError struct {
	err error
}

func NewInvalidSignerErrorf(msg string, args ...interface{}) error {
	return InvalidSignerError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidSignerError) Error() string { return e.err.Error() }
func (e InvalidSignerError) Unwrap() error { return e.err }

// IsInvalidSignerError returns whether err is an InvalidSignerError
func IsInvalidSignerError(err error) bool {
	var e InvalidSignerError
	return errors.As(err, &e)
}

// InsufficientSignaturesError indicates that not enough weight signed.
type InsufficientSignaturesError struct {
	err error
}

func NewInsufficientSignaturesErrorf(msg string, args ...interface{}) error {
	return InsufficientSignaturesError{err: fmt.Errorf(msg, args...)}
}

func (e InsufficientSignaturesError) Error() string { return e.err.Error() }
func (e InsufficientSignaturesError) Unwrap() error { return e.err }

// IsInsufficientSignaturesError returns whether err is an InsufficientSignaturesError
func IsInsufficientSignaturesError(err error) bool {
	var e InsufficientSignaturesError
	return errors.As(err, &e)
}

// UnknownEpochError indicates that the stake table (or the randomized leader
// schedule) of an epoch isn't known yet. It's a transient state around epoch
// rollover; the membership coordinator retries on it.
type UnknownEpochError struct {
	Epoch Epoch
	err   error
}

func NewUnknownEpochErrorf(epoch Epoch, msg string, args ...interface{}) error {
	return UnknownEpochError{Epoch: epoch, err: fmt.Errorf(msg, args...)}
}

func (e UnknownEpochError) Error() string {
	return fmt.Sprintf("epoch %s unknown: %s", e.Epoch, e.err.Error())
}

func (e UnknownEpochError) Unwrap() error { return e.err }

// IsUnknownEpochError returns whether err is an UnknownEpochError
func IsUnknownEpochError(err error) bool {
	var e UnknownEpochError
	return errors.As(err, &e)
}

// InconsistentCommitmentError indicates that artifacts which must agree on a
// commitment (proposal, DA certificate, VID share; QC pairs) don't.
type InconsistentCommitmentError struct {
	View View
	err  error
}

func NewInconsistentCommitmentErrorf(view View, msg string, args ...interface{}) error {
	return InconsistentCommitmentError{View: view, err: fmt.Errorf(msg, args...)}
}

func (e InconsistentCommitmentError) Error() string {
	return fmt.Sprintf("inconsistent commitments for view %d: %s", e.View, e.err.Error())
}

func (e InconsistentCommitmentError) Unwrap() error { return e.err }

// IsInconsistentCommitmentError returns whether err is an InconsistentCommitmentError
func IsInconsistentCommitmentError(err error) bool {
	var e InconsistentCommitmentError
	return errors.As(err, &e)
}

func shorten(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// VoteForIncompatibleViewError is returned when a vote is handed to the
// collector of a different view.
type VoteForIncompatibleViewError struct {
	VoteView      View
	CollectorView View
}

func NewVoteForIncompatibleViewError(voteView, collectorView View) error {
	return VoteForIncompatibleViewError{VoteView: voteView, CollectorView: collectorView}
}

func (e VoteForIncompatibleViewError) Error() string {
	return fmt.Sprintf("vote for view %d handed to collector of view %d", e.VoteView, e.CollectorView)
}

// IsVoteForIncompatibleViewError returns whether err is a VoteForIncompatibleViewError
func IsVoteForIncompatibleViewError(err error) bool {
	var e VoteForIncompatibleViewError
	return errors.As(err, &e)
}
