package sheets

import "errors"

var (
	ErrNoSheets      = errors.New("workbook has no sheets")
	ErrMissingHeader = errors.New("pool header row not found")
	ErrNoEntrants    = errors.New("pool sheet lists no entrants")
	ErrBadCell       = errors.New("unreadable score cell")
)
