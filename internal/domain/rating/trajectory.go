package rating

// Snapshot is the state after one fit. Snapshots are never mutated after recording.
type Snapshot struct {
	Seq       int                `json:"seq"`
	BoutIndex int                `json:"bout_index"`
	Label     string             `json:"label"`
	Strengths map[string]float64 `json:"strengths"`
	WinShares map[string]float64 `json:"win_shares"`
}

// EntrantPoint is one entrant's value in a snapshot.
type EntrantPoint struct {
	Seq       int     `json:"seq"`
	BoutIndex int     `json:"bout_index"`
	Label     string  `json:"label"`
	Strength  float64 `json:"strength"`
	WinShare  float64 `json:"win_share"`
}

// Recorder is an append-only series of snapshots.
type Recorder struct {
	snaps []Snapshot
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a snapshot. The maps are copied.
func (r *Recorder) Record(boutIndex int, label string, strengths, shares map[string]float64) Snapshot {
	snap := Snapshot{
		Seq:       len(r.snaps) + 1,
		BoutIndex: boutIndex,
		Label:     label,
		Strengths: make(map[string]float64, len(strengths)),
		WinShares: make(map[string]float64, len(shares)),
	}
	for k, v := range strengths {
		snap.Strengths[k] = v
	}
	for k, v := range shares {
		snap.WinShares[k] = v
	}
	r.snaps = append(r.snaps, snap)
	return snap
}

// clone shares the recorded snapshots, which are never mutated.
func (r *Recorder) clone() *Recorder {
	return &Recorder{snaps: append([]Snapshot(nil), r.snaps...)}
}

// Len returns the number of snapshots.
func (r *Recorder) Len() int { return len(r.snaps) }

// Series returns the full series. Callers must not mutate the maps.
func (r *Recorder) Series() []Snapshot {
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

// Entrant returns the points of id across every snapshot that contains it.
func (r *Recorder) Entrant(id string) []EntrantPoint {
	out := make([]EntrantPoint, 0, len(r.snaps))
	for _, s := range r.snaps {
		v, ok := s.Strengths[id]
		if !ok {
			continue
		}
		out = append(out, EntrantPoint{
			Seq:       s.Seq,
			BoutIndex: s.BoutIndex,
			Label:     s.Label,
			Strength:  v,
			WinShare:  s.WinShares[id],
		})
	}
	return out
}
