// Package simtool generates synthetic fencing events and runs them through
// the rating and bracket engine offline or against a running server.
package simtool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/okian/piste/internal/domain/rating"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Error constants.
var (
	ErrNoEntrants  = errors.New("scenario has no entrants")
	ErrEmptyEvent  = errors.New("scenario has no event")
	ErrPoolSize    = errors.New("pool size must be at least 2")
	ErrStalled     = errors.New("bracket has no playable bout")
	ErrServerReply = errors.New("unexpected server reply")
)

// Scenario is one event's roster and pool sheets, the unit piste-sim reads
// and writes.
type Scenario struct {
	Event  string                `yaml:"event" json:"event"`
	Seed   uint64                `yaml:"seed,omitempty" json:"seed,omitempty"`
	Roster []rating.EntrantInput `yaml:"roster" json:"entrants"`
	Pools  []rating.PoolSheet    `yaml:"pools" json:"pools"`
}

// Validate checks the parts every command relies on.
func (s Scenario) Validate() error {
	if s.Event == "" {
		return ErrEmptyEvent
	}
	if len(s.Roster) == 0 {
		return ErrNoEntrants
	}
	return nil
}

// ReadScenario decodes a YAML scenario.
func ReadScenario(r io.Reader) (Scenario, error) {
	var s Scenario
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (Scenario, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadScenario(f)
}

// WriteScenario encodes s as YAML.
func WriteScenario(w io.Writer, s Scenario) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	return enc.Close()
}

// writeFile creates path, and its directory when missing, and hands the file to write.
func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
