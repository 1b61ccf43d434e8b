// Package errs defines the error kinds emitted by the facet index core.
// Configuration and input errors are returned to the caller without retry;
// storage errors abort only the current transaction; corruption errors are
// fatal and are expected to be logged by the caller.
package errs

import "errors"

// Kind identifies one of the error conditions the facet core can raise.
type Kind uint8

const (
	_ Kind = iota
	// KindNotFilterable means the field is not configured as filterable.
	KindNotFilterable
	// KindSearchDisabled means facet search is switched off for the index.
	KindSearchDisabled
	// KindWrongType means the query and the field's value type disagree.
	KindWrongType
	// KindValueTooLong flags an input value longer than MAX_FACET_VALUE_LENGTH.
	// Not fatal: the value is truncated on a character boundary. Kept around
	// for testability, not for use as a returned error in normal operation.
	KindValueTooLong
	// KindStorage wraps an underlying KV failure.
	KindStorage
	// KindCorruptTree means a structural invariant was violated at read time.
	KindCorruptTree
)

func (k Kind) String() string {
	switch k {
	case KindNotFilterable:
		return "ERR_FACET_NOT_FILTERABLE"
	case KindSearchDisabled:
		return "ERR_FACET_SEARCH_DISABLED"
	case KindWrongType:
		return "ERR_FACET_WRONG_TYPE"
	case KindValueTooLong:
		return "ERR_VALUE_TOO_LONG"
	case KindStorage:
		return "ERR_STORAGE"
	case KindCorruptTree:
		return "ERR_CORRUPT_TREE"
	default:
		return "ERR_UNKNOWN"
	}
}

// Error is the concrete error type returned by the facet core. Wrap an
// underlying cause with Wrap, or use New for a plain message.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error that carries an underlying cause (typically a
// storage-layer failure propagated verbatim).
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err is a facet core *Error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
