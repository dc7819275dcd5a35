package rating

import "strings"

// DefaultUnratedStrength is the prior for unrated or unknown labels.
const DefaultUnratedStrength = 1.0

// DefaultTiers maps rating letters onto an exponential strength scale.
func DefaultTiers() map[string]float64 {
	return map[string]float64{"A": 32, "B": 16, "C": 8, "D": 4, "E": 2}
}

// PriorTable turns an external rating label ("A24", "C", "U") into a prior strength.
type PriorTable struct {
	tiers   map[string]float64
	unrated float64
}

// NewPriorTable builds a table. Non-positive entries are ignored; an empty
// tier map falls back to DefaultTiers.
func NewPriorTable(tiers map[string]float64, unrated float64) PriorTable {
	t := PriorTable{tiers: make(map[string]float64), unrated: DefaultUnratedStrength}
	for k, v := range tiers {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k != "" && v > 0 {
			t.tiers[k[:1]] = v
		}
	}
	if len(t.tiers) == 0 {
		t.tiers = DefaultTiers()
	}
	if unrated > 0 {
		t.unrated = unrated
	}
	return t
}

// Strength returns the prior for label. Only the leading letter is significant.
func (t PriorTable) Strength(label string) float64 {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" || label == "U" || label == "U/U" {
		return t.unrated
	}
	if v, ok := t.tiers[label[:1]]; ok {
		return v
	}
	return t.unrated
}

// Unrated returns the floor strength.
func (t PriorTable) Unrated() float64 { return t.unrated }
