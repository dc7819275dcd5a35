package rating

import (
	"math"
	"sort"
)

// Fit defaults.
const (
	DefaultPriorWeight   = 0.3
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 200
)

// FitInput is everything the MM solver needs. It is not modified.
type FitInput struct {
	Bouts  []Bout
	Priors map[string]float64
	// Start holds the strengths the iteration begins from; missing ids start at their prior.
	Start         map[string]float64
	Weight        float64
	Tolerance     float64
	MaxIterations int
}

// FitResult holds strengths for every entrant with at least one bout.
type FitResult struct {
	Strengths  map[string]float64
	Iterations int
	Converged  bool
	MaxDelta   float64
}

type edge struct {
	other   string
	touches float64
}

// Fit runs the Bradley-Terry minorize-maximize fixed point over the full bout log:
//
//	s_i' = (W_i + w*prior_i) / (sum_j n_ij/(s_i+s_j) + w)
//
// All entrants are updated from the previous iterate. Hitting the iteration
// cap is reported through Converged, not as an error.
func Fit(in FitInput) FitResult {
	w := in.Weight
	if w <= 0 {
		w = DefaultPriorWeight
	}
	tol := in.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	maxIter := in.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	scored := make(map[string]float64)
	between := make(map[[2]string]float64)
	for _, b := range in.Bouts {
		scored[b.EntrantA] += float64(b.ScoreA)
		scored[b.EntrantB] += float64(b.ScoreB)
		between[pairKey(b.EntrantA, b.EntrantB)] += float64(b.ScoreA + b.ScoreB)
	}
	if len(scored) == 0 {
		return FitResult{Strengths: map[string]float64{}, Converged: true}
	}

	ids := make([]string, 0, len(scored))
	for id := range scored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	adj := make(map[string][]edge, len(ids))
	for k, n := range between {
		adj[k[0]] = append(adj[k[0]], edge{other: k[1], touches: n})
		adj[k[1]] = append(adj[k[1]], edge{other: k[0], touches: n})
	}
	for _, id := range ids {
		es := adj[id]
		sort.Slice(es, func(i, j int) bool { return es[i].other < es[j].other })
	}

	prior := func(id string) float64 {
		if p, ok := in.Priors[id]; ok && p > 0 {
			return p
		}
		return DefaultUnratedStrength
	}

	s := make(map[string]float64, len(ids))
	for _, id := range ids {
		if v, ok := in.Start[id]; ok && v > 0 {
			s[id] = v
		} else {
			s[id] = prior(id)
		}
	}

	res := FitResult{}
	for res.Iterations < maxIter {
		res.Iterations++
		next := make(map[string]float64, len(ids))
		for _, id := range ids {
			num := scored[id] + w*prior(id)
			den := w
			ok := true
			for _, e := range adj[id] {
				sum := s[id] + s[e.other]
				if sum <= 0 {
					ok = false
					break
				}
				den += e.touches / sum
			}
			if !ok || num <= 0 || den <= 0 {
				next[id] = s[id]
				continue
			}
			next[id] = num / den
		}

		res.MaxDelta = 0
		for _, id := range ids {
			d := math.Abs(math.Log(next[id]) - math.Log(s[id]))
			if d > res.MaxDelta {
				res.MaxDelta = d
			}
		}
		s = next
		if res.MaxDelta < tol {
			res.Converged = true
			break
		}
	}
	res.Strengths = s
	return res
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
