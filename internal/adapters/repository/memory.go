package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/errs"
)

// Memory is a process-local Ledger. Brackets are stored encoded so callers
// never share mutable state with the ledger.
type Memory struct {
	mu          sync.RWMutex
	tournaments map[string]Tournament
	bouts       map[string][]rating.Bout
	indexes     map[string]map[int]struct{}
	brackets    map[string][]byte
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		tournaments: make(map[string]Tournament),
		bouts:       make(map[string][]rating.Bout),
		indexes:     make(map[string]map[int]struct{}),
		brackets:    make(map[string][]byte),
	}
}

func checkEvent(op, event string) error {
	if strings.TrimSpace(event) == "" {
		return errs.WrapKind(op, errs.ErrValidation, ErrEmptyEvent)
	}
	return nil
}

// SaveTournament implements Ledger.
func (m *Memory) SaveTournament(_ context.Context, t Tournament) error {
	if err := checkEvent("repository.SaveTournament", t.Event); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Roster = append([]rating.EntrantInput(nil), t.Roster...)
	m.tournaments[t.Event] = t
	return nil
}

// Tournaments implements Ledger.
func (m *Memory) Tournaments(_ context.Context) ([]Tournament, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tournament, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		t.Roster = append([]rating.EntrantInput(nil), t.Roster...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Event < out[j].Event
	})
	return out, nil
}

// AppendBouts implements Ledger. The batch is all-or-nothing.
func (m *Memory) AppendBouts(_ context.Context, event string, bouts []rating.Bout) error {
	const op = "repository.AppendBouts"
	if err := checkEvent(op, event); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := m.indexes[event]
	if seen == nil {
		seen = make(map[int]struct{})
		m.indexes[event] = seen
	}
	batch := make(map[int]struct{}, len(bouts))
	for _, b := range bouts {
		_, stored := seen[b.Index]
		_, dup := batch[b.Index]
		if stored || dup {
			return errs.Validationf(op, "%w: %s #%d", ErrDuplicateBout, event, b.Index)
		}
		batch[b.Index] = struct{}{}
	}
	for _, b := range bouts {
		seen[b.Index] = struct{}{}
		m.bouts[event] = append(m.bouts[event], b)
	}
	return nil
}

// Bouts implements Ledger.
func (m *Memory) Bouts(_ context.Context, event string) ([]rating.Bout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]rating.Bout(nil), m.bouts[event]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// SaveBracket implements Ledger.
func (m *Memory) SaveBracket(_ context.Context, event string, b *bracket.Bracket) error {
	const op = "repository.SaveBracket"
	if err := checkEvent(op, event); err != nil {
		return err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return errs.Wrap(op, fmt.Errorf("encode bracket: %w", err))
	}
	m.mu.Lock()
	m.brackets[event] = raw
	m.mu.Unlock()
	return nil
}

// LoadBracket implements Ledger.
func (m *Memory) LoadBracket(_ context.Context, event string) (*bracket.Bracket, error) {
	const op = "repository.LoadBracket"
	m.mu.RLock()
	raw, ok := m.brackets[event]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.NotFoundf(op, "%w: bracket for %s", ErrNotFound, event)
	}
	var b bracket.Bracket
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errs.Wrap(op, fmt.Errorf("decode bracket: %w", err))
	}
	return &b, nil
}

// DeleteBracket implements Ledger.
func (m *Memory) DeleteBracket(_ context.Context, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.brackets[event]; !ok {
		return errs.NotFoundf("repository.DeleteBracket", "%w: bracket for %s", ErrNotFound, event)
	}
	delete(m.brackets, event)
	return nil
}

// Close implements Ledger.
func (m *Memory) Close() {}
