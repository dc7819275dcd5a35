package service

import "errors"

// Sentinel causes for service errors.
var (
	ErrEmptyEvent       = errors.New("event name is required")
	ErrTournamentExists = errors.New("tournament already exists")
	ErrUnknownEvent     = errors.New("tournament not found")
	ErrInvalidPool      = errors.New("pool sheet rejected")
	ErrBracketExists    = errors.New("bracket already exists")
	ErrNoBracket        = errors.New("no bracket for event")
	ErrTooManyTrials    = errors.New("too many simulation trials")
	ErrNotStarted       = errors.New("service not started")
)
