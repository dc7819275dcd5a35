package rating

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/piste/pkg/errs"
)

// upsetRatio is how much stronger the loser must be for a result to count as an upset.
const upsetRatio = 1.5

// Record is a win/loss/touch tally. Drawn bouts count toward touches only.
type Record struct {
	Wins            int `json:"wins"`
	Losses          int `json:"losses"`
	TouchesScored   int `json:"touches_scored"`
	TouchesReceived int `json:"touches_received"`
	Indicator       int `json:"indicator"`
}

func (r *Record) add(mine, theirs int) {
	r.TouchesScored += mine
	r.TouchesReceived += theirs
	r.Indicator = r.TouchesScored - r.TouchesReceived
	switch {
	case mine > theirs:
		r.Wins++
	case mine < theirs:
		r.Losses++
	}
}

// Row is one line of the ranking table.
type Row struct {
	Entrant  Entrant `json:"entrant"`
	Rank     int     `json:"rank"`
	WinShare float64 `json:"win_share"`
	Record
	HasBouts bool `json:"has_bouts"`
}

// Ranking is the full table ordered by strength.
type Ranking struct {
	Rows      []Row `json:"rows"`
	BoutCount int   `json:"bout_count"`
}

// Ranking orders entrants by strength desc, then id asc.
func (s *Store) Ranking() Ranking {
	records := s.records()
	shares := s.WinShares()
	rows := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		e := s.entrants[id]
		rows = append(rows, Row{
			Entrant:  *e,
			WinShare: shares[id],
			Record:   records[id],
			HasBouts: s.active[id] > 0,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Entrant.Strength != rows[j].Entrant.Strength {
			return rows[i].Entrant.Strength > rows[j].Entrant.Strength
		}
		return rows[i].Entrant.ID < rows[j].Entrant.ID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return Ranking{Rows: rows, BoutCount: len(s.bouts)}
}

// Ranked returns entrants in ranking order.
func (s *Store) Ranked() []Entrant {
	r := s.Ranking()
	out := make([]Entrant, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Entrant
	}
	return out
}

func (s *Store) records() map[string]Record {
	out := make(map[string]Record, len(s.entrants))
	for _, b := range s.bouts {
		ra, rb := out[b.EntrantA], out[b.EntrantB]
		ra.add(b.ScoreA, b.ScoreB)
		rb.add(b.ScoreB, b.ScoreA)
		out[b.EntrantA], out[b.EntrantB] = ra, rb
	}
	return out
}

// HeadToHead summarizes the bouts between two entrants from A's side.
type HeadToHead struct {
	WinsA    int    `json:"wins_a"`
	WinsB    int    `json:"wins_b"`
	TouchesA int    `json:"touches_a"`
	TouchesB int    `json:"touches_b"`
	Bouts    []Bout `json:"bouts"`
}

// Pairwise is the Bradley-Terry single-bout probability between two entrants.
type Pairwise struct {
	A            Entrant    `json:"a"`
	B            Entrant    `json:"b"`
	ProbabilityA float64    `json:"probability_a"`
	ProbabilityB float64    `json:"probability_b"`
	HeadToHead   HeadToHead `json:"head_to_head"`
	Expected5    string     `json:"expected_score_5"`
	Expected15   string     `json:"expected_score_15"`
}

// Pairwise returns P(a beats b) = s_a/(s_a+s_b) with the head-to-head record.
func (s *Store) Pairwise(a, b string) (Pairwise, error) {
	const op = "rating.Pairwise"
	ea, ok := s.entrants[a]
	if !ok {
		return Pairwise{}, errs.NotFoundf(op, "%w: %s", ErrUnknownEntrant, a)
	}
	eb, ok := s.entrants[b]
	if !ok {
		return Pairwise{}, errs.NotFoundf(op, "%w: %s", ErrUnknownEntrant, b)
	}
	p := WinProbability(ea.Strength, eb.Strength)

	h := HeadToHead{Bouts: []Bout{}}
	for _, bt := range s.bouts {
		var mine, theirs int
		switch {
		case bt.EntrantA == a && bt.EntrantB == b:
			mine, theirs = bt.ScoreA, bt.ScoreB
		case bt.EntrantA == b && bt.EntrantB == a:
			mine, theirs = bt.ScoreB, bt.ScoreA
		default:
			continue
		}
		h.TouchesA += mine
		h.TouchesB += theirs
		switch {
		case mine > theirs:
			h.WinsA++
		case theirs > mine:
			h.WinsB++
		}
		h.Bouts = append(h.Bouts, bt)
	}

	return Pairwise{
		A:            *ea,
		B:            *eb,
		ProbabilityA: p,
		ProbabilityB: 1 - p,
		HeadToHead:   h,
		Expected5:    expectedScore(5, p),
		Expected15:   expectedScore(15, p),
	}, nil
}

// WinProbability is s_a/(s_a+s_b), or 0.5 when the sum is not positive.
func WinProbability(sa, sb float64) float64 {
	if sa+sb <= 0 {
		return 0.5
	}
	return sa / (sa + sb)
}

func expectedScore(touches int, p float64) string {
	t := float64(touches)
	return fmt.Sprintf("%.1f-%.1f", t*p, t*(1-p))
}

// BoutDetail is a bout seen from one entrant.
type BoutDetail struct {
	Index            int     `json:"index"`
	OpponentID       string  `json:"opponent_id"`
	OpponentName     string  `json:"opponent_name"`
	OpponentRating   string  `json:"opponent_rating"`
	OpponentClub     string  `json:"opponent_club"`
	OpponentStrength float64 `json:"opponent_strength"`
	Scored           int     `json:"scored"`
	Received         int     `json:"received"`
	Victory          bool    `json:"victory"`
	Upset            bool    `json:"upset"`
	Source           string  `json:"source"`
}

// SourceSummary tallies an entrant's bouts per source (one per pool, plus direct bouts).
type SourceSummary struct {
	Source string `json:"source"`
	Bouts  int    `json:"bouts"`
	Record
}

// EntrantDetail is the per-entrant drill-down.
type EntrantDetail struct {
	Row
	Bouts   []BoutDetail    `json:"bouts"`
	Sources []SourceSummary `json:"sources"`
}

// Detail returns the bout history of id with upset flags and per-source summaries.
func (s *Store) Detail(id string) (EntrantDetail, error) {
	me, ok := s.entrants[id]
	if !ok {
		return EntrantDetail{}, errs.NotFoundf("rating.Detail", "%w: %s", ErrUnknownEntrant, id)
	}

	var row Row
	for _, r := range s.Ranking().Rows {
		if r.Entrant.ID == id {
			row = r
			break
		}
	}

	d := EntrantDetail{Row: row, Bouts: []BoutDetail{}, Sources: []SourceSummary{}}
	bySource := make(map[string]int)
	for _, b := range s.bouts {
		var oppID string
		var mine, theirs int
		switch id {
		case b.EntrantA:
			oppID, mine, theirs = b.EntrantB, b.ScoreA, b.ScoreB
		case b.EntrantB:
			oppID, mine, theirs = b.EntrantA, b.ScoreB, b.ScoreA
		default:
			continue
		}
		opp := s.entrants[oppID]
		win, loss := mine > theirs, mine < theirs
		d.Bouts = append(d.Bouts, BoutDetail{
			Index:            b.Index,
			OpponentID:       oppID,
			OpponentName:     opp.Name(),
			OpponentRating:   opp.Rating,
			OpponentClub:     opp.Club,
			OpponentStrength: opp.Strength,
			Scored:           mine,
			Received:         theirs,
			Victory:          win,
			Upset:            (win && opp.Strength > me.Strength*upsetRatio) || (loss && me.Strength > opp.Strength*upsetRatio),
			Source:           b.Source,
		})

		i, seen := bySource[b.Source]
		if !seen {
			i = len(d.Sources)
			bySource[b.Source] = i
			d.Sources = append(d.Sources, SourceSummary{Source: b.Source})
		}
		d.Sources[i].Bouts++
		d.Sources[i].add(mine, theirs)
	}
	return d, nil
}

// Find resolves a free-text query: exact id or name match first (case
// insensitive), then the first entrant whose name or id contains the query.
func (s *Store) Find(query string) (Entrant, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Entrant{}, false
	}
	for _, id := range s.order {
		e := s.entrants[id]
		if strings.ToLower(e.ID) == q || strings.ToLower(e.Name()) == q {
			return *e, true
		}
	}
	for _, id := range s.order {
		e := s.entrants[id]
		if strings.Contains(strings.ToLower(e.Name()), q) || strings.Contains(strings.ToLower(e.ID), q) {
			return *e, true
		}
	}
	return Entrant{}, false
}

// Bouts returns the log newest first.
func (s *Store) Bouts() []Bout {
	out := make([]Bout, len(s.bouts))
	for i, b := range s.bouts {
		out[len(s.bouts)-1-i] = b
	}
	return out
}

// Ledger returns the log in append order.
func (s *Store) Ledger() []Bout {
	out := make([]Bout, len(s.bouts))
	copy(out, s.bouts)
	return out
}
