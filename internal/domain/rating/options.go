package rating

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithPriorWeight sets the pseudo-count weight of the prior.
func WithPriorWeight(w float64) Option {
	return func(s *Store) {
		if w > 0 {
			s.weight = w
		}
	}
}

// WithTolerance sets the convergence tolerance on max |delta log s|.
func WithTolerance(tol float64) Option {
	return func(s *Store) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// WithMaxIterations caps the MM iterations per fit.
func WithMaxIterations(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithPriorTable replaces the rating-label prior table.
func WithPriorTable(t PriorTable) Option {
	return func(s *Store) {
		s.priors = t
	}
}

// WithClock overrides the timestamp source for new bouts.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
