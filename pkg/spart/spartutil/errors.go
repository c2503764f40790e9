// Package spartutil holds the error kinds shared by every index family.
//
// OutOfRegion and NotFound are not modelled as errors here: per the external
// interface, a boundary-rejected insert and a missed delete are ordinary
// `false` results, not exceptional control flow.
package spartutil

import "fmt"

// Kind distinguishes the error conditions a tree operation can report.
type Kind int

const (
	// InvalidArgument covers a zero capacity, a negative k or r, or a
	// malformed boundary descriptor.
	InvalidArgument Kind = iota
	// IOError covers a save/load failure in the underlying byte stream.
	IOError
	// FormatError covers a load that finds a wrong magic tag, an unknown
	// version, a truncated stream, or a payload that fails to decode.
	FormatError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case IOError:
		return "io error"
	case FormatError:
		return "format error"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every tree operation that can fail.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// NewInvalidArgument builds an InvalidArgument error.
func NewInvalidArgument(format string, args ...any) error {
	return &Error{Kind: InvalidArgument, msg: fmt.Sprintf(format, args...)}
}

// NewIOError wraps an underlying stream failure as an IOError.
func NewIOError(err error) error {
	return &Error{Kind: IOError, msg: "underlying stream failed", err: err}
}

// NewFormatError builds a FormatError from a formatted message. It wraps no
// cause: an error passed among args appears only in the message text.
func NewFormatError(format string, args ...any) error {
	return &Error{Kind: FormatError, msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if e, ok := err.(*Error); ok {
		se = e
	} else {
		return false
	}
	return se.Kind == kind
}
