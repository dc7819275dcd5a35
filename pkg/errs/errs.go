// Package errs defines the error taxonomy shared by the domain and the
// transport layers.
//
// Every failure returned by the rating and bracket engines carries a kind
// (validation or not-found) plus the operation that produced it. Callers
// branch with errors.Is against either the kind or the underlying cause.
package errs

import (
	"errors"
	"fmt"
)

// Kinds.
var (
	// ErrValidation marks rejected input or an unmet precondition. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown event, entrant, bout or referee.
	ErrNotFound = errors.New("not found")
)

// Error is an operation-tagged error with an optional kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, keeping whatever kind it already carries.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Validationf builds a validation error with a formatted reason.
func Validationf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// NotFoundf builds a not-found error with a formatted reason.
func NotFoundf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf(format, args...)}
}

// IsValidation reports whether err is of the validation kind.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is of the not-found kind.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
