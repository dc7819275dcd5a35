package repository

import "errors"

// Sentinel causes for ledger errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrEmptyEvent    = errors.New("event name is required")
	ErrDuplicateBout = errors.New("bout index already stored")
)
