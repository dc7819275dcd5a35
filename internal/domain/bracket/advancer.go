package bracket

import (
	"sort"
	"strings"

	"github.com/okian/piste/pkg/errs"
)

// Advancer applies reported results to a bracket.
type Advancer struct {
	cfg config
}

// NewAdvancer creates an advancer.
func NewAdvancer(opts ...Option) *Advancer {
	return &Advancer{cfg: newConfig(opts)}
}

// TouchTarget returns the winning score.
func (a *Advancer) TouchTarget() int { return a.cfg.touchTarget }

// Report is the outcome of an accepted result.
type Report struct {
	Bout             Bout       `json:"bout"`
	Winner           Competitor `json:"winner"`
	Loser            Competitor `json:"loser"`
	RoundName        string     `json:"round_name"`
	IsFinal          bool       `json:"is_final"`
	BracketCompleted bool       `json:"bracket_completed"`
}

// Report records the result of a pending bout with both slots filled,
// advances the winner and, on the final, completes the bracket and computes
// standings. A bout that is already completed is rejected, so retries are safe.
func (a *Advancer) Report(b *Bracket, boutID string, top, bottom int, sig Signatures) (Report, error) {
	const op = "bracket.Report"
	bt := b.find(boutID)
	if bt == nil {
		return Report{}, errs.NotFoundf(op, "%w: %s", ErrBoutNotFound, boutID)
	}
	if bt.Status != StatusPending {
		return Report{}, errs.Validationf(op, "%w: %s is %s", ErrBoutNotPending, boutID, bt.Status)
	}
	if bt.Top.Empty() || bt.Bottom.Empty() {
		return Report{}, errs.Validationf(op, "%w: %s", ErrSlotsIncomplete, boutID)
	}
	if err := a.checkScore(top, bottom); err != nil {
		return Report{}, errs.WrapKind(op, errs.ErrValidation, err)
	}

	now := a.cfg.now().UTC()
	bt.TopScore, bt.BottomScore = &top, &bottom
	bt.Winner = SideTop
	if bottom > top {
		bt.Winner = SideBottom
	}
	bt.Status = StatusCompleted
	bt.ReportedAt = &now
	bt.Signatures = sig

	winner, loserSlot, _ := bt.WinnerLoser()
	loser, _ := loserSlot.Occupant()
	b.advance(bt, winner)

	final := b.Final()
	isFinal := final.ID == bt.ID
	if isFinal {
		b.Status = StateCompleted
		b.Standings = Standings(b)
	}
	return Report{
		Bout:             *bt,
		Winner:           winner,
		Loser:            loser,
		RoundName:        b.RoundOf(bt.ID),
		IsFinal:          isFinal,
		BracketCompleted: b.Status == StateCompleted,
	}, nil
}

func (a *Advancer) checkScore(top, bottom int) error {
	t := a.cfg.touchTarget
	if top == bottom {
		return ErrEqualScores
	}
	if (top == t && bottom >= 0 && bottom < t) || (bottom == t && top >= 0 && top < t) {
		return nil
	}
	return ErrIllegalScore
}

// AssignReferee sets the referee of a pending bout. The status is unchanged.
func (a *Advancer) AssignReferee(b *Bracket, boutID string, ref RefereeAssignment) (Bout, error) {
	const op = "bracket.AssignReferee"
	if strings.TrimSpace(ref.RefereeID) == "" {
		return Bout{}, errs.WrapKind(op, errs.ErrValidation, ErrMissingReferee)
	}
	bt := b.find(boutID)
	if bt == nil {
		return Bout{}, errs.NotFoundf(op, "%w: %s", ErrBoutNotFound, boutID)
	}
	if bt.Status != StatusPending {
		return Bout{}, errs.Validationf(op, "%w: %s is %s", ErrBoutNotPending, boutID, bt.Status)
	}
	bt.Referee = &ref
	return *bt, nil
}

// CanDelete fails once any bout has a reported result. Byes do not count.
func CanDelete(b *Bracket) error {
	if n := b.CompletedBouts(); n > 0 {
		return errs.Validationf("bracket.Delete", "%w: %d completed bouts", ErrHasResults, n)
	}
	return nil
}

// Standings places eliminated competitors by round depth: the final's loser
// is 2nd, the loser of a bout in round r places (size>>(r+1))+1, the final's
// winner is 1st. Byes contribute nothing. Sorted by place then seed.
func Standings(b *Bracket) []Standing {
	out := []Standing{}
	placed := make(map[string]struct{})
	add := func(place int, c Competitor) {
		if _, ok := placed[c.ID]; ok {
			return
		}
		placed[c.ID] = struct{}{}
		out = append(out, Standing{Place: place, Competitor: c})
	}

	last := len(b.Rounds) - 1
	for r := last; r >= 0; r-- {
		for _, bt := range b.Rounds[r].Bouts {
			if bt.Status != StatusCompleted {
				continue
			}
			winner, loserSlot, ok := bt.WinnerLoser()
			loser, hasLoser := loserSlot.Occupant()
			if !ok || !hasLoser {
				continue
			}
			if r == last {
				add(2, loser)
				add(1, winner)
				continue
			}
			add((b.Size>>(r+1))+1, loser)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Place != out[j].Place {
			return out[i].Place < out[j].Place
		}
		return out[i].Competitor.Seed < out[j].Competitor.Seed
	})
	return out
}
