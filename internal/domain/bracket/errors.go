package bracket

import "errors"

// Sentinel causes for bracket errors. They are wrapped with an errs kind.
var (
	ErrTooFewEntrants   = errors.New("a bracket needs at least two entrants")
	ErrDuplicateEntrant = errors.New("entrant seeded twice")
	ErrInvalidSize      = errors.New("bracket size must be a power of two and at least 2")
	ErrBoutNotFound     = errors.New("bout not found")
	ErrBoutNotPending   = errors.New("bout is not pending")
	ErrSlotsIncomplete  = errors.New("bout does not have both entrants assigned")
	ErrEqualScores      = errors.New("scores cannot be equal")
	ErrIllegalScore     = errors.New("one score must reach the touch target and the other be below it")
	ErrHasResults       = errors.New("bracket has reported results")
	ErrMissingReferee   = errors.New("referee id is required")
)
