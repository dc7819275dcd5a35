package bracket

import (
	"strings"

	"github.com/okian/piste/pkg/errs"
)

// Builder turns a ranked list into a seeded bracket.
type Builder struct {
	cfg config
}

// NewBuilder creates a builder.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{cfg: newConfig(opts)}
}

// Build creates the bracket for event from seedings (rank 1 first). Seeds
// are renumbered from the list order. First-round byes are resolved and
// their occupants already sit in round two when Build returns.
func (bl *Builder) Build(event string, seedings []Seeding) (*Bracket, error) {
	const op = "bracket.Build"
	if len(seedings) < 2 {
		return nil, errs.Validationf(op, "%w: got %d", ErrTooFewEntrants, len(seedings))
	}
	seen := make(map[string]struct{}, len(seedings))
	seeded := make([]Seeding, len(seedings))
	for i, s := range seedings {
		id := strings.TrimSpace(s.ID)
		if _, dup := seen[id]; dup {
			return nil, errs.Validationf(op, "%w: %s", ErrDuplicateEntrant, id)
		}
		seen[id] = struct{}{}
		s.ID = id
		s.Seed = i + 1
		seeded[i] = s
	}

	size := Size(len(seeded))
	pairs, err := FoldPairs(size)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrValidation, err)
	}
	total := TotalRounds(size)
	prefix := Prefix(event)

	b := &Bracket{
		Event:        event,
		Size:         size,
		EntrantCount: len(seeded),
		ByeCount:     size - len(seeded),
		Status:       StateInProgress,
		CreatedAt:    bl.cfg.now().UTC(),
		Seedings:     seeded,
		Rounds:       make([]Round, total),
		Standings:    []Standing{},
	}
	for r := 0; r < total; r++ {
		count := size >> (r + 1)
		round := Round{Name: RoundName(size, r), Number: r, Bouts: make([]Bout, count)}
		for i := 0; i < count; i++ {
			bt := Bout{ID: BoutID(prefix, r, i), Round: r, Index: i, Status: StatusPending}
			if r < total-1 {
				slot := SideTop
				if i%2 == 1 {
					slot = SideBottom
				}
				bt.Next = &Link{BoutID: BoutID(prefix, r+1, i/2), Slot: slot}
			}
			round.Bouts[i] = bt
		}
		b.Rounds[r] = round
	}

	first := b.Rounds[0].Bouts
	for i, p := range pairs {
		if p[0] <= len(seeded) {
			first[i].Top = Occupied(seeded[p[0]-1].Competitor)
		}
		if p[1] <= len(seeded) {
			first[i].Bottom = Occupied(seeded[p[1]-1].Competitor)
		}
	}
	for i := range first {
		bt := &first[i]
		switch {
		case !bt.Top.Empty() && bt.Bottom.Empty():
			bt.Status, bt.Winner = StatusBye, SideTop
		case bt.Top.Empty() && !bt.Bottom.Empty():
			bt.Status, bt.Winner = StatusBye, SideBottom
		default:
			continue
		}
		w, _, _ := bt.WinnerLoser()
		b.advance(bt, w)
	}
	return b, nil
}

// advance places w into the slot bt is wired to. The final has no link.
func (b *Bracket) advance(bt *Bout, w Competitor) {
	if bt.Next == nil {
		return
	}
	if next := b.find(bt.Next.BoutID); next != nil {
		*next.Slot(bt.Next.Slot) = Occupied(w)
	}
}
