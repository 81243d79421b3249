package export

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind classifies a fatal export error.
type Kind string

const (
	KindArgument Kind = "argument" // malformed CLI input
	KindTable    Kind = "table"    // chat.db open or query failure
	KindIO       Kind = "io"       // output file failure
)

// Error is a fatal export error. Every error Run and ResolveRange return is
// an *Error.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	traced error // Err wrapped by eris at the point of failure
}

// Error implements the error interface.
func (e *Error) Error() string {
	var prefix string
	switch e.Kind {
	case KindArgument:
		prefix = "Argument error"
	case KindTable:
		prefix = "Database error"
	case KindIO:
		prefix = "IO error"
	default:
		prefix = "Error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Trace renders the error with the stack captured where it was created.
// It falls back to Error() when there is no underlying cause.
func (e *Error) Trace() string {
	if e.traced == nil {
		return e.Error()
	}
	return eris.ToString(e.traced, true)
}

// NewArgumentError reports malformed user input.
func NewArgumentError(format string, args ...any) *Error {
	return &Error{Kind: KindArgument, Message: fmt.Sprintf(format, args...)}
}

// NewTableError wraps a chat.db failure.
func NewTableError(msg string, err error) *Error {
	return &Error{Kind: KindTable, Message: msg, Err: err, traced: eris.Wrap(err, msg)}
}

// NewIOError wraps an output file failure.
func NewIOError(msg string, err error) *Error {
	return &Error{Kind: KindIO, Message: msg, Err: err, traced: eris.Wrap(err, msg)}
}
