package bracket

import (
	"fmt"
	"math/bits"
	"strings"
)

// Size returns the smallest power of two that holds n entrants (minimum 2).
func Size(n int) int {
	size := 2
	for size < n {
		size <<= 1
	}
	return size
}

// TotalRounds is log2(size).
func TotalRounds(size int) int {
	return bits.TrailingZeros(uint(size))
}

// FoldPairs returns the first-round seed pairs for a bracket of size entries.
// The pairs of size/2 are unfolded: (a, b) becomes (a, size+1-a), (b, size+1-b),
// so seed 1 meets seed size and seeds 1 and 2 can only meet in the final.
func FoldPairs(size int) ([][2]int, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return foldPairs(size), nil
}

func foldPairs(size int) [][2]int {
	if size == 2 {
		return [][2]int{{1, 2}}
	}
	half := foldPairs(size / 2)
	out := make([][2]int, 0, size/2)
	for _, p := range half {
		out = append(out, [2]int{p[0], size + 1 - p[0]}, [2]int{p[1], size + 1 - p[1]})
	}
	return out
}

// RoundName names round r (0-based) by the number of entrants still in it.
func RoundName(size, r int) string {
	switch remaining := size >> r; remaining {
	case 2:
		return "Final"
	case 4:
		return "Semifinal"
	default:
		return fmt.Sprintf("Table of %d", remaining)
	}
}

// Prefix derives the bout id prefix from the event name.
func Prefix(event string) string {
	p := strings.NewReplacer(" ", "", "'", "").Replace(event)
	if r := []rune(p); len(r) > 8 {
		p = string(r[:8])
	}
	return strings.ToUpper(p)
}

// BoutID formats the stable id of bout b in round r.
func BoutID(prefix string, r, b int) string {
	return fmt.Sprintf("%s-R%d-B%d", prefix, r, b)
}
