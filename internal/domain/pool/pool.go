// Package pool computes round-robin pool results from a score matrix.
package pool

import (
	"fmt"
	"sort"
)

// DefaultMaxScore is the winning score of a pool bout.
const DefaultMaxScore = 5

// Result is one entrant's line of a pool sheet.
type Result struct {
	ID              string `json:"id"`
	Victories       int    `json:"victories"`
	Bouts           int    `json:"bouts"`
	TouchesScored   int    `json:"touches_scored"`
	TouchesReceived int    `json:"touches_received"`
	Indicator       int    `json:"indicator"`
	Place           int    `json:"place"`
}

// Ratio is victories over bouts fenced.
func (r Result) Ratio() float64 {
	if r.Bouts == 0 {
		return 0
	}
	return float64(r.Victories) / float64(r.Bouts)
}

// Results tallies V, TS, TR and the indicator for each row of matrix and
// assigns places by V desc, indicator desc, TS desc. Rows beyond ids get a
// positional id.
func Results(matrix [][]*int, ids []string) []Result {
	n := len(matrix)
	out := make([]Result, n)
	for i := 0; i < n; i++ {
		r := Result{ID: idAt(ids, i)}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			mine, theirs := at(matrix, i, j), at(matrix, j, i)
			if mine != nil {
				r.TouchesScored += *mine
			}
			if theirs != nil {
				r.TouchesReceived += *theirs
			}
			if mine != nil && theirs != nil {
				r.Bouts++
				if *mine > *theirs {
					r.Victories++
				}
			}
		}
		r.Indicator = r.TouchesScored - r.TouchesReceived
		out[i] = r
	}
	sort.SliceStable(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if x.Victories != y.Victories {
			return x.Victories > y.Victories
		}
		if x.Indicator != y.Indicator {
			return x.Indicator > y.Indicator
		}
		return x.TouchesScored > y.TouchesScored
	})
	for i := range out {
		out[i].Place = i + 1
	}
	return out
}

// Seedings merges the results of several pools into one seeding order:
// victory ratio desc, indicator desc, TS desc, then id. An entrant that
// appears in more than one pool has its numbers summed.
func Seedings(pools ...[]Result) []Result {
	byID := make(map[string]*Result)
	var order []string
	for _, p := range pools {
		for _, r := range p {
			acc, ok := byID[r.ID]
			if !ok {
				cp := r
				byID[r.ID] = &cp
				order = append(order, r.ID)
				continue
			}
			acc.Victories += r.Victories
			acc.Bouts += r.Bouts
			acc.TouchesScored += r.TouchesScored
			acc.TouchesReceived += r.TouchesReceived
			acc.Indicator = acc.TouchesScored - acc.TouchesReceived
		}
	}
	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if x.Ratio() != y.Ratio() {
			return x.Ratio() > y.Ratio()
		}
		if x.Indicator != y.Indicator {
			return x.Indicator > y.Indicator
		}
		if x.TouchesScored != y.TouchesScored {
			return x.TouchesScored > y.TouchesScored
		}
		return x.ID < y.ID
	})
	for i := range out {
		out[i].Place = i + 1
	}
	return out
}

func at(m [][]*int, i, j int) *int {
	if j >= len(m[i]) {
		return nil
	}
	return m[i][j]
}

func idAt(ids []string, i int) string {
	if i < len(ids) {
		return ids[i]
	}
	return fmt.Sprintf("#%d", i+1)
}
