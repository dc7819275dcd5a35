package pool

import "fmt"

// Anomaly levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// Anomaly is a structural problem found in a score matrix.
type Anomaly struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Check inspects a matrix for shape and scoring problems. Errors make the
// sheet unusable; warnings are reported but the sheet can still be ingested.
func Check(matrix [][]*int, ids []string, maxScore int) []Anomaly {
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}
	n := len(matrix)
	if n == 0 {
		return []Anomaly{{Level: LevelError, Message: "empty score matrix"}}
	}
	var out []Anomaly
	if len(ids) != n {
		out = append(out, Anomaly{Level: LevelError, Message: fmt.Sprintf("%d entrants for a %d-row matrix", len(ids), n)})
	}
	for i, row := range matrix {
		if len(row) != n {
			out = append(out, Anomaly{Level: LevelError, Message: fmt.Sprintf("row %d has %d cells, want %d", i+1, len(row), n)})
		}
	}
	if len(out) > 0 {
		return out
	}

	sum := 0
	for _, r := range Results(matrix, ids) {
		sum += r.Indicator
	}
	if sum != 0 {
		out = append(out, Anomaly{Level: LevelError, Message: fmt.Sprintf("indicator sum is %d, should be 0", sum)})
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || matrix[i][j] == nil {
				continue
			}
			if v := *matrix[i][j]; v < 0 || v > maxScore {
				out = append(out, Anomaly{Level: LevelError, Message: fmt.Sprintf("%s vs %s: score %d out of 0-%d range", ids[i], ids[j], v, maxScore)})
			}
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := matrix[i][j], matrix[j][i]
			if (a == nil) != (b == nil) {
				out = append(out, Anomaly{Level: LevelWarning, Message: fmt.Sprintf("%s vs %s: only one score recorded", ids[i], ids[j])})
				continue
			}
			if a == nil {
				continue
			}
			if *a == *b {
				out = append(out, Anomaly{Level: LevelError, Message: fmt.Sprintf("%s vs %s: tied at %d", ids[i], ids[j], *a)})
				continue
			}
			if *a != maxScore && *b != maxScore {
				out = append(out, Anomaly{Level: LevelWarning, Message: fmt.Sprintf("%s (%d) vs %s (%d): neither scored %d", ids[i], *a, ids[j], *b, maxScore)})
			}
		}
	}
	return out
}

// HasErrors reports whether any anomaly is at error level.
func HasErrors(as []Anomaly) bool {
	for _, a := range as {
		if a.Level == LevelError {
			return true
		}
	}
	return false
}
