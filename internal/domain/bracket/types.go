// Package bracket builds seeded single-elimination brackets and advances them
// through reported results to final standings.
package bracket

import (
	"encoding/json"
	"strings"
	"time"
)

// Side identifies a slot of a bout.
type Side string

// Sides.
const (
	SideNone   Side = ""
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// Status is the state of a bout. Bye and completed are terminal.
type Status string

// Bout states.
const (
	StatusPending   Status = "pending"
	StatusBye       Status = "bye"
	StatusCompleted Status = "completed"
)

// State is the state of a whole bracket.
type State string

// Bracket states.
const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Competitor is a seeded entrant as it appears in the bracket.
type Competitor struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Club      string `json:"club,omitempty"`
	Rating    string `json:"rating,omitempty"`
	Seed      int    `json:"seed"`
}

// Name is the display name.
func (c Competitor) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// PoolStats are the round-robin numbers a seeding was derived from.
type PoolStats struct {
	Victories       int `json:"victories"`
	Bouts           int `json:"bouts"`
	TouchesScored   int `json:"touches_scored"`
	TouchesReceived int `json:"touches_received"`
	Indicator       int `json:"indicator"`
}

// Seeding is one line of the ranked input list.
type Seeding struct {
	Competitor
	Pool *PoolStats `json:"pool_stats,omitempty"`
}

// Slot holds a bout occupant or nothing. The zero value is empty.
type Slot struct {
	c *Competitor
}

// Occupied returns a slot holding c.
func Occupied(c Competitor) Slot {
	return Slot{c: &c}
}

// Occupant returns the competitor in the slot.
func (s Slot) Occupant() (Competitor, bool) {
	if s.c == nil {
		return Competitor{}, false
	}
	return *s.c, true
}

// Empty reports whether nobody occupies the slot.
func (s Slot) Empty() bool { return s.c == nil }

// MarshalJSON encodes an empty slot as null.
func (s Slot) MarshalJSON() ([]byte, error) {
	if s.c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.c)
}

// UnmarshalJSON accepts null or a competitor object.
func (s *Slot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		s.c = nil
		return nil
	}
	var c Competitor
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	s.c = &c
	return nil
}

// Link wires a bout to the next-round slot its winner fills.
type Link struct {
	BoutID string `json:"bout_id"`
	Slot   Side   `json:"slot"`
}

// RefereeAssignment is who officiates a bout and where.
type RefereeAssignment struct {
	RefereeID string `json:"referee_id"`
	Name      string `json:"name,omitempty"`
	Strip     string `json:"strip,omitempty"`
}

// Signatures collected when a result is reported.
type Signatures struct {
	Referee string `json:"referee,omitempty"`
	Winner  string `json:"winner,omitempty"`
}

// Bout is one bracket bout.
type Bout struct {
	ID          string             `json:"id"`
	Round       int                `json:"round"`
	Index       int                `json:"index"`
	Top         Slot               `json:"top"`
	Bottom      Slot               `json:"bottom"`
	TopScore    *int               `json:"top_score"`
	BottomScore *int               `json:"bottom_score"`
	Winner      Side               `json:"winner_side,omitempty"`
	Status      Status             `json:"status"`
	Referee     *RefereeAssignment `json:"referee,omitempty"`
	Signatures  Signatures         `json:"signatures"`
	ReportedAt  *time.Time         `json:"reported_at,omitempty"`
	Next        *Link              `json:"next,omitempty"`
}

// Slot returns the slot on side.
func (b *Bout) Slot(side Side) *Slot {
	if side == SideBottom {
		return &b.Bottom
	}
	return &b.Top
}

// WinnerLoser returns the occupants by result. ok is false until the bout is resolved.
func (b Bout) WinnerLoser() (winner Competitor, loser Slot, ok bool) {
	switch b.Winner {
	case SideTop:
		w, found := b.Top.Occupant()
		return w, b.Bottom, found
	case SideBottom:
		w, found := b.Bottom.Occupant()
		return w, b.Top, found
	default:
		return Competitor{}, Slot{}, false
	}
}

// Round is one column of the bracket.
type Round struct {
	Name   string `json:"name"`
	Number int    `json:"number"`
	Bouts  []Bout `json:"bouts"`
}

// Standing is a final place.
type Standing struct {
	Place      int        `json:"place"`
	Competitor Competitor `json:"competitor"`
}

// Bracket is the full document of one event.
type Bracket struct {
	Event        string     `json:"event"`
	Size         int        `json:"size"`
	EntrantCount int        `json:"entrant_count"`
	ByeCount     int        `json:"bye_count"`
	Status       State      `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	Seedings     []Seeding  `json:"seedings"`
	Rounds       []Round    `json:"rounds"`
	Standings    []Standing `json:"standings"`
}

// Bout returns a copy of the bout with id.
func (b *Bracket) Bout(id string) (Bout, bool) {
	if p := b.find(id); p != nil {
		return *p, true
	}
	return Bout{}, false
}

// Final returns the unique last-round bout.
func (b *Bracket) Final() Bout {
	return b.Rounds[len(b.Rounds)-1].Bouts[0]
}

// RoundOf returns the name of the round containing bout id.
func (b *Bracket) RoundOf(id string) string {
	for _, r := range b.Rounds {
		for _, bt := range r.Bouts {
			if bt.ID == id {
				return r.Name
			}
		}
	}
	return ""
}

// CompletedBouts counts reported results. Byes are not results.
func (b *Bracket) CompletedBouts() int {
	n := 0
	for _, r := range b.Rounds {
		for _, bt := range r.Bouts {
			if bt.Status == StatusCompleted {
				n++
			}
		}
	}
	return n
}

// Competitors returns the seeded competitors in seed order.
func (b *Bracket) Competitors() []Competitor {
	out := make([]Competitor, len(b.Seedings))
	for i, s := range b.Seedings {
		out[i] = s.Competitor
	}
	return out
}

func (b *Bracket) find(id string) *Bout {
	for r := range b.Rounds {
		for i := range b.Rounds[r].Bouts {
			if b.Rounds[r].Bouts[i].ID == id {
				return &b.Rounds[r].Bouts[i]
			}
		}
	}
	return nil
}

// RefereeBout is a bout assigned to a referee, with its context.
type RefereeBout struct {
	Event     string `json:"event"`
	RoundName string `json:"round_name"`
	Bout      Bout   `json:"bout"`
}

// RefereeBouts returns every bout assigned to refereeID.
func (b *Bracket) RefereeBouts(refereeID string) []RefereeBout {
	var out []RefereeBout
	for _, r := range b.Rounds {
		for _, bt := range r.Bouts {
			if bt.Referee != nil && bt.Referee.RefereeID == refereeID {
				out = append(out, RefereeBout{Event: b.Event, RoundName: r.Name, Bout: bt})
			}
		}
	}
	return out
}
