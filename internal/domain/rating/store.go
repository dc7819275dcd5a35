// Package rating fits Bradley-Terry strengths from touch-level bout results
// and keeps the bout log and trajectory for one tournament.
package rating

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/piste/pkg/errs"
)

// Entrant is a registered competitor.
type Entrant struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Club      string  `json:"club"`
	Rating    string  `json:"rating"`
	Event     string  `json:"event"`
	Prior     float64 `json:"prior"`
	Strength  float64 `json:"strength"`
}

// Name is the display name.
func (e Entrant) Name() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// EntrantInput is the registration payload.
type EntrantInput struct {
	ID        string `json:"id" yaml:"id"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Club      string `json:"club" yaml:"club"`
	Rating    string `json:"rating" yaml:"rating"`
	Event     string `json:"event" yaml:"event"`
}

// Bout is one immutable entry of the log.
type Bout struct {
	Index     int       `json:"index"`
	EntrantA  string    `json:"entrant_a"`
	EntrantB  string    `json:"entrant_b"`
	ScoreA    int       `json:"score_a"`
	ScoreB    int       `json:"score_b"`
	Source    string    `json:"source"`
	PoolID    string    `json:"pool_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceDirect labels bouts entered one at a time.
const SourceDirect = "Manual"

// PoolSheet is a finalized round-robin score matrix. Scores[i][j] is the
// number of touches Entrants[i] scored against Entrants[j]; nil means not fenced.
type PoolSheet struct {
	ID       string   `json:"id" yaml:"id,omitempty"`
	Number   int      `json:"number" yaml:"number"`
	Entrants []string `json:"entrants" yaml:"entrants"`
	Scores   [][]*int `json:"scores" yaml:"scores"`
}

// BoutOutcome is returned after a single bout has been applied.
type BoutOutcome struct {
	Bout      Bout      `json:"bout"`
	Fit       FitResult `json:"-"`
	StrengthA float64   `json:"strength_a"`
	StrengthB float64   `json:"strength_b"`
	WinShareA float64   `json:"win_share_a"`
	WinShareB float64   `json:"win_share_b"`
}

// Store owns entrants, the append-only bout log and the trajectory of one
// tournament. It is not safe for concurrent use; callers serialize access.
type Store struct {
	weight        float64
	tolerance     float64
	maxIterations int
	priors        PriorTable
	now           func() time.Time

	order    []string
	entrants map[string]*Entrant
	bouts    []Bout
	active   map[string]int
	lastFit  FitResult
	history  *Recorder
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		weight:        DefaultPriorWeight,
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
		priors:        NewPriorTable(nil, DefaultUnratedStrength),
		now:           time.Now,
		entrants:      make(map[string]*Entrant),
		active:        make(map[string]int),
		history:       NewRecorder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an entrant with the prior derived from its rating label.
func (s *Store) Register(in EntrantInput) (Entrant, error) {
	const op = "rating.Register"
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return Entrant{}, errs.WrapKind(op, errs.ErrValidation, ErrEmptyID)
	}
	if _, ok := s.entrants[id]; ok {
		return Entrant{}, errs.Validationf(op, "%w: %s", ErrDuplicateEntrant, id)
	}
	p := s.priors.Strength(in.Rating)
	e := &Entrant{
		ID:        id,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Club:      in.Club,
		Rating:    in.Rating,
		Event:     in.Event,
		Prior:     p,
		Strength:  p,
	}
	s.entrants[id] = e
	s.order = append(s.order, id)
	return *e, nil
}

// Clone returns an independent copy. Mutating the copy leaves s untouched, so
// callers can stage a change and keep the original until it is persisted.
func (s *Store) Clone() *Store {
	c := *s
	c.order = append([]string(nil), s.order...)
	c.bouts = append([]Bout(nil), s.bouts...)
	c.entrants = make(map[string]*Entrant, len(s.entrants))
	for id, e := range s.entrants {
		cp := *e
		c.entrants[id] = &cp
	}
	c.active = make(map[string]int, len(s.active))
	for id, n := range s.active {
		c.active[id] = n
	}
	c.history = s.history.clone()
	return &c
}

// Entrant returns a registered entrant.
func (s *Store) Entrant(id string) (Entrant, error) {
	e, ok := s.entrants[id]
	if !ok {
		return Entrant{}, errs.NotFoundf("rating.Entrant", "%w: %s", ErrUnknownEntrant, id)
	}
	return *e, nil
}

// Entrants returns all entrants in registration order.
func (s *Store) Entrants() []Entrant {
	out := make([]Entrant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entrants[id])
	}
	return out
}

// Strength returns the current strength of id, or the unrated floor when unknown.
func (s *Store) Strength(id string) float64 {
	if e, ok := s.entrants[id]; ok {
		return e.Strength
	}
	return s.priors.Unrated()
}

// BoutCount returns the length of the log.
func (s *Store) BoutCount() int { return len(s.bouts) }

// LastFit returns the result of the most recent refit.
func (s *Store) LastFit() FitResult { return s.lastFit }

// AddBout appends one bout, refits every strength and records a snapshot.
func (s *Store) AddBout(a, b string, scoreA, scoreB int, source string) (BoutOutcome, error) {
	const op = "rating.AddBout"
	if a == b {
		return BoutOutcome{}, errs.Validationf(op, "%w: %s", ErrSelfBout, a)
	}
	if scoreA < 0 || scoreB < 0 {
		return BoutOutcome{}, errs.Validationf(op, "%w: %d-%d", ErrNegativeScore, scoreA, scoreB)
	}
	for _, id := range []string{a, b} {
		if _, ok := s.entrants[id]; !ok {
			return BoutOutcome{}, errs.NotFoundf(op, "%w: %s", ErrUnknownEntrant, id)
		}
	}
	if source == "" {
		source = SourceDirect
	}
	bout := s.appendBout(a, b, scoreA, scoreB, source, "")
	s.refit()
	s.snapshot(fmt.Sprintf("%s vs %s: %d-%d", s.displayName(a), s.displayName(b), scoreA, scoreB))

	shares := s.WinShares()
	return BoutOutcome{
		Bout:      bout,
		Fit:       s.lastFit,
		StrengthA: s.entrants[a].Strength,
		StrengthB: s.entrants[b].Strength,
		WinShareA: shares[a],
		WinShareB: shares[b],
	}, nil
}

// IngestMatrix decomposes the upper triangle of a pool matrix into bouts,
// refits once and records a "Pool {n}" snapshot. It returns the number of bouts added.
func (s *Store) IngestMatrix(sheet PoolSheet) (int, error) {
	const op = "rating.IngestMatrix"
	n := len(sheet.Entrants)
	if n == 0 || len(sheet.Scores) != n {
		return 0, errs.Validationf(op, "%w: %d entrants, %d rows", ErrMatrixShape, n, len(sheet.Scores))
	}
	for i, row := range sheet.Scores {
		if len(row) != n {
			return 0, errs.Validationf(op, "%w: row %d has %d cells", ErrMatrixShape, i, len(row))
		}
		for j, c := range row {
			if i != j && c != nil && *c < 0 {
				return 0, errs.Validationf(op, "%w: cell [%d][%d]=%d", ErrNegativeScore, i, j, *c)
			}
		}
	}
	seen := make(map[string]struct{}, n)
	for _, id := range sheet.Entrants {
		if _, ok := s.entrants[id]; !ok {
			return 0, errs.NotFoundf(op, "%w: %s", ErrUnknownEntrant, id)
		}
		if _, dup := seen[id]; dup {
			return 0, errs.Validationf(op, "%w: %s listed twice", ErrMatrixShape, id)
		}
		seen[id] = struct{}{}
	}

	source := fmt.Sprintf("Pool %d", sheet.Number)
	added := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sa, sb := sheet.Scores[i][j], sheet.Scores[j][i]
			if sa == nil || sb == nil {
				continue
			}
			s.appendBout(sheet.Entrants[i], sheet.Entrants[j], *sa, *sb, source, sheet.ID)
			added++
		}
	}
	if added > 0 {
		s.refit()
		s.snapshot(source)
	}
	return added, nil
}

// Replay restores a persisted ledger into an empty log, then fits once and
// records an "Initial fit" snapshot.
func (s *Store) Replay(bouts []Bout) error {
	const op = "rating.Replay"
	for _, b := range bouts {
		for _, id := range []string{b.EntrantA, b.EntrantB} {
			if _, ok := s.entrants[id]; !ok {
				return errs.NotFoundf(op, "%w: %s (bout %d)", ErrUnknownEntrant, id, b.Index)
			}
		}
		if b.EntrantA == b.EntrantB {
			return errs.Validationf(op, "%w: bout %d", ErrSelfBout, b.Index)
		}
		if b.ScoreA < 0 || b.ScoreB < 0 {
			return errs.Validationf(op, "%w: bout %d", ErrNegativeScore, b.Index)
		}
	}
	for _, b := range bouts {
		if next := s.nextIndex(); b.Index < next {
			b.Index = next
		}
		s.bouts = append(s.bouts, b)
		s.active[b.EntrantA]++
		s.active[b.EntrantB]++
	}
	if len(bouts) > 0 {
		s.refit()
		s.snapshot("Initial fit")
	}
	return nil
}

func (s *Store) appendBout(a, b string, scoreA, scoreB int, source, poolID string) Bout {
	bout := Bout{
		Index:     s.nextIndex(),
		EntrantA:  a,
		EntrantB:  b,
		ScoreA:    scoreA,
		ScoreB:    scoreB,
		Source:    source,
		PoolID:    poolID,
		Timestamp: s.now().UTC(),
	}
	s.bouts = append(s.bouts, bout)
	s.active[a]++
	s.active[b]++
	return bout
}

func (s *Store) displayName(id string) string {
	if name := s.entrants[id].Name(); name != "" {
		return name
	}
	return id
}

func (s *Store) nextIndex() int {
	if len(s.bouts) == 0 {
		return 1
	}
	return s.bouts[len(s.bouts)-1].Index + 1
}

// refit recomputes every strength from the full log. Entrants without bouts
// are reset to their prior.
func (s *Store) refit() {
	priors := make(map[string]float64, len(s.entrants))
	start := make(map[string]float64, len(s.entrants))
	for id, e := range s.entrants {
		priors[id] = e.Prior
		start[id] = e.Strength
	}
	res := Fit(FitInput{
		Bouts:         s.bouts,
		Priors:        priors,
		Start:         start,
		Weight:        s.weight,
		Tolerance:     s.tolerance,
		MaxIterations: s.maxIterations,
	})
	for id, e := range s.entrants {
		if v, ok := res.Strengths[id]; ok {
			e.Strength = v
		} else {
			e.Strength = e.Prior
		}
	}
	s.lastFit = res
}

// snapshot records strengths of entrants with at least one bout.
func (s *Store) snapshot(label string) {
	strengths := make(map[string]float64, len(s.active))
	for id := range s.active {
		strengths[id] = s.entrants[id].Strength
	}
	s.history.Record(s.nextIndex()-1, label, strengths, s.WinShares())
}

// WinShares returns strength / sum of active strengths, in percent, for every
// entrant with at least one bout. It is a coarse heuristic and is distinct
// from both Pairwise and the Monte Carlo projection.
func (s *Store) WinShares() map[string]float64 {
	total := 0.0
	for id := range s.active {
		total += s.entrants[id].Strength
	}
	out := make(map[string]float64, len(s.active))
	for id := range s.active {
		if total > 0 {
			out[id] = s.entrants[id].Strength / total * 100
		} else {
			out[id] = 0
		}
	}
	return out
}

// Trajectory returns every snapshot in sequence order.
func (s *Store) Trajectory() []Snapshot { return s.history.Series() }

// EntrantTrajectory returns the series of a single entrant.
func (s *Store) EntrantTrajectory(id string) ([]EntrantPoint, error) {
	if _, ok := s.entrants[id]; !ok {
		return nil, errs.NotFoundf("rating.EntrantTrajectory", "%w: %s", ErrUnknownEntrant, id)
	}
	return s.history.Entrant(id), nil
}
