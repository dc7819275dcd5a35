// Package repository persists tournament rosters, bout ledgers and bracket documents.
package repository

import (
	"context"
	"time"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
)

// Tournament is a persisted roster.
type Tournament struct {
	Event     string                `json:"event"`
	Roster    []rating.EntrantInput `json:"roster"`
	CreatedAt time.Time             `json:"created_at"`
}

// Ledger provides durable storage for everything a tournament needs to be
// rebuilt on start-up. Bouts are append-only.
type Ledger interface {
	// SaveTournament stores or replaces the roster of an event.
	SaveTournament(ctx context.Context, t Tournament) error
	// Tournaments lists every stored event ordered by creation time.
	Tournaments(ctx context.Context) ([]Tournament, error)

	// AppendBouts adds bouts to the event's log. Indexes must be new.
	AppendBouts(ctx context.Context, event string, bouts []rating.Bout) error
	// Bouts returns the event's log ordered by index.
	Bouts(ctx context.Context, event string) ([]rating.Bout, error)

	// SaveBracket stores or replaces the event's bracket document.
	SaveBracket(ctx context.Context, event string, b *bracket.Bracket) error
	// LoadBracket returns ErrNotFound if the event has no bracket.
	LoadBracket(ctx context.Context, event string) (*bracket.Bracket, error)
	// DeleteBracket returns ErrNotFound if the event has no bracket.
	DeleteBracket(ctx context.Context, event string) error

	Close()
}
