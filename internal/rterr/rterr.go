// Package rterr defines the error kinds raised by the process control
// subsystem. Callers classify failures with errors.Is against the sentinel
// kinds; the wrapping Error keeps the operation and the underlying OS error.
package rterr

import (
	"errors"
	"fmt"
)

var (
	// ErrMemory reports that a buffer or allocation limit was exceeded.
	ErrMemory = errors.New("memory error")
	// ErrFile reports an OS level failure on a file, pipe or process.
	ErrFile = errors.New("file error")
	// ErrRange reports a value that cannot be represented in the target
	// encoding.
	ErrRange = errors.New("range error")
)

// Error wraps an OS or conversion failure with its kind.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Memory returns an ErrMemory failure for op.
func Memory(op string, err error) error {
	return &Error{Kind: ErrMemory, Op: op, Err: err}
}

// File returns an ErrFile failure for op.
func File(op string, err error) error {
	return &Error{Kind: ErrFile, Op: op, Err: err}
}

// Range returns an ErrRange failure for op.
func Range(op string, err error) error {
	return &Error{Kind: ErrRange, Op: op, Err: err}
}

// KindOf reports the kind carried by err, or nil if err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{ErrMemory, ErrFile, ErrRange} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
