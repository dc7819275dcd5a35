package rating

import "errors"

// Sentinel causes for rating errors. They are wrapped with an errs kind.
var (
	ErrEmptyID          = errors.New("entrant id is empty")
	ErrDuplicateEntrant = errors.New("entrant already registered")
	ErrUnknownEntrant   = errors.New("unknown entrant")
	ErrSelfBout         = errors.New("entrant cannot fence itself")
	ErrNegativeScore    = errors.New("scores must be non-negative")
	ErrMatrixShape      = errors.New("score matrix must be square and match the pool roster")
)
