// Package idxerr defines the process-wide error-kind identifiers raised by
// the index. Errors are structured values, never panics, except for
// pin-discipline violations, which are fatal conditions that must be
// unreachable by construction.
package idxerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error conditions the index can raise.
type Kind int

const (
	_ Kind = iota
	// BadIndexInfo: an existing index file's metadata disagrees with the
	// constructor arguments.
	BadIndexInfo
	// BadOpcodes: lo_op not in {GT,GTE} or hi_op not in {LT,LTE}.
	BadOpcodes
	// BadScanRange: lo > hi.
	BadScanRange
	// NoSuchKey: start_scan found no key satisfying the range.
	NoSuchKey
	// ScanNotInitialized: next_scan/end_scan called while Idle.
	ScanNotInitialized
	// ScanCompleted: next_scan called after the scan was exhausted.
	ScanCompleted
	// EndOfInput: the relation scanner's end-of-input signal, caught
	// internally during bulk build. Surfaced as io.EOF by package relation;
	// this Kind exists so callers reasoning about Error.Kind never see a
	// bare io.EOF escape the index layer.
	EndOfInput
)

func (k Kind) String() string {
	switch k {
	case BadIndexInfo:
		return "BAD_INDEX_INFO"
	case BadOpcodes:
		return "BAD_OPCODES"
	case BadScanRange:
		return "BAD_SCAN_RANGE"
	case NoSuchKey:
		return "NO_SUCH_KEY"
	case ScanNotInitialized:
		return "SCAN_NOT_INITIALIZED"
	case ScanCompleted:
		return "SCAN_COMPLETED"
	case EndOfInput:
		return "END_OF_INPUT"
	default:
		return "UNKNOWN_ERROR_KIND"
	}
}

// Error is a structured failure carrying its Kind. Callers that need to
// branch on the specific condition should use errors.As / Is, not string
// matching on Error().
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a message.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Err: errors.New(msg)}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
