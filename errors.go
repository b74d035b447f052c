package rtreedb

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the class of failure raised by the engine and its
// paged stores.
type ErrorCode int

const (
	// Success is the zero value; never wrapped into an Error.
	Success ErrorCode = iota

	// ErrDimMismatch indicates the caller supplied the wrong number of
	// coordinates for the tree's configured dimensionality.
	ErrDimMismatch

	// ErrCapacityExceeded indicates an internal fan-out invariant was
	// violated. Should never escape the engine; treated as a bug.
	ErrCapacityExceeded

	// ErrCorruptTree indicates a tree or record file header failed to
	// validate.
	ErrCorruptTree

	// ErrIncompatibleTree indicates a tree/record file pair does not
	// share a unique_sequence/config_hash.
	ErrIncompatibleTree

	// ErrRecordNotFound indicates a record offset outside the valid
	// range of the record file.
	ErrRecordNotFound

	// ErrNodeNotFound indicates a node id outside the valid range of the
	// tree file.
	ErrNodeNotFound

	// ErrIo wraps an underlying file I/O failure.
	ErrIo
)

var errorMessages = map[ErrorCode]string{
	ErrDimMismatch:      "coordinate count does not match tree dimensions",
	ErrCapacityExceeded: "node capacity exceeded",
	ErrCorruptTree:      "tree or record file header is invalid",
	ErrIncompatibleTree: "tree file and record file are not a matching pair",
	ErrRecordNotFound:   "record offset not found",
	ErrNodeNotFound:     "node id not found",
	ErrIo:               "i/o error",
}

// Error is the error type returned by every rtreedb operation that fails.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped underlying error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rtreedb: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("rtreedb: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error for the given code using its canonical message.
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError builds an Error for the given code wrapping an underlying error.
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// Code returns the ErrorCode carried by err, or Success if err is nil, or
// ErrIo if err is a non-rtreedb error.
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrIo
}

// IsNotFound reports whether err is a RecordNotFound or NodeNotFound error.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrRecordNotFound || e.Code == ErrNodeNotFound
	}
	return false
}
