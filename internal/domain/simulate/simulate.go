// Package simulate projects bracket outcomes by Monte Carlo over fitted strengths.
package simulate

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/okian/piste/internal/domain/bracket"
)

// DefaultTrials is the number of simulated brackets per projection.
const DefaultTrials = 10000

// ChampionLabel is the last column of a projection.
const ChampionLabel = "Champion"

// Option applies a configuration option to the Simulator.
type Option func(*Simulator)

// WithTrials sets the default trial count.
func WithTrials(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.trials = n
		}
	}
}

// WithSeed makes every run reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// Simulator runs independent trials of a fold-seeded bracket. It is safe for
// concurrent use; every run owns its random source.
type Simulator struct {
	trials  int
	newRand func() *rand.Rand
}

// New creates a simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		trials: DefaultTrials,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Row is one competitor's projection. Advancement is aligned with
// Projection.Rounds minus the champion column: Advancement[r] is the percentage
// of trials in which the competitor won a live bout in round r. A bye is not
// counted. Champion counts every trial the competitor finished on top.
type Row struct {
	Competitor  bracket.Competitor `json:"competitor"`
	Strength    float64            `json:"strength"`
	Advancement []float64          `json:"advancement"`
	Champion    float64            `json:"champion"`
}

// Projection is the aggregated result of a run.
type Projection struct {
	Trials      int      `json:"trials"`
	BracketSize int      `json:"bracket_size"`
	Rounds      []string `json:"rounds"`
	Results     []Row    `json:"results"`
	Note        string   `json:"note,omitempty"`
}

// Run simulates trials brackets (the default when trials <= 0) for field in
// seed order. A live bout is a Bernoulli draw with p = s_a/(s_a+s_b), 0.5
// when the sum is not positive. An empty field yields a projection with a note.
func (s *Simulator) Run(field []bracket.Competitor, strength func(id string) float64, trials int) Projection {
	if trials <= 0 {
		trials = s.trials
	}
	if len(field) == 0 {
		return Projection{Trials: trials, Rounds: []string{}, Results: []Row{}, Note: "no entrants"}
	}

	size := bracket.Size(len(field))
	pairs, _ := bracket.FoldPairs(size)
	total := bracket.TotalRounds(size)

	rounds := make([]string, 0, total+1)
	for r := 0; r < total; r++ {
		rounds = append(rounds, bracket.RoundName(size, r))
	}
	rounds = append(rounds, ChampionLabel)

	// Slots hold indexes into field, -1 for an empty position.
	start := make([]int, 0, size)
	for _, p := range pairs {
		for _, seed := range p {
			if seed <= len(field) {
				start = append(start, seed-1)
			} else {
				start = append(start, -1)
			}
		}
	}

	strengths := make([]float64, len(field))
	for i, c := range field {
		strengths[i] = strength(c.ID)
	}

	counts := make([][]int, len(field))
	for i := range counts {
		counts[i] = make([]int, total)
	}
	champions := make([]int, len(field))

	rng := s.newRand()
	cur := make([]int, size)
	for t := 0; t < trials; t++ {
		cur = cur[:size]
		copy(cur, start)
		for r := 0; len(cur) > 1; r++ {
			next := cur[:0]
			for i := 0; i+1 < len(cur); i += 2 {
				w, live := play(rng, cur[i], cur[i+1], strengths)
				if live {
					counts[w][r]++
				}
				next = append(next, w)
			}
			cur = next
		}
		if cur[0] >= 0 {
			champions[cur[0]]++
		}
	}

	rows := make([]Row, len(field))
	for i, c := range field {
		adv := make([]float64, total)
		for r := range adv {
			adv[r] = percent(counts[i][r], trials)
		}
		rows[i] = Row{Competitor: c, Strength: strengths[i], Advancement: adv, Champion: percent(champions[i], trials)}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Champion > rows[j].Champion })

	return Projection{Trials: trials, BracketSize: size, Rounds: rounds, Results: rows}
}

// play returns the index advancing from a pairing, -1 when both are empty.
// live is false for a bye.
func play(rng *rand.Rand, a, b int, strengths []float64) (int, bool) {
	switch {
	case a < 0:
		return b, false
	case b < 0:
		return a, false
	}
	sa, sb := strengths[a], strengths[b]
	p := 0.5
	if sa+sb > 0 {
		p = sa / (sa + sb)
	}
	if rng.Float64() < p {
		return a, true
	}
	return b, true
}

func percent(n, trials int) float64 {
	return math.Round(float64(n)/float64(trials)*1000) / 10
}
