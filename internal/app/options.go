package service

import (
	"github.com/okian/piste/internal/adapters/mq/worker"
	"github.com/okian/piste/internal/adapters/repository"
	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/internal/domain/simulate"
	"github.com/okian/piste/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many pool submission keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedger sets the persistence backend. The default is in-memory.
func WithLedger(l repository.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithPublisher sets where notifications go. The default logs them.
func WithPublisher(p worker.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRatingOptions configures every tournament's rating store.
func WithRatingOptions(opts ...rating.Option) Option {
	return func(s *Service) {
		s.ratingOpts = append(s.ratingOpts, opts...)
	}
}

// WithBracketOptions configures bracket building and reporting.
func WithBracketOptions(opts ...bracket.Option) Option {
	return func(s *Service) {
		s.bracketOpts = append(s.bracketOpts, opts...)
	}
}

// WithSimulationOptions configures the Monte Carlo simulator.
func WithSimulationOptions(opts ...simulate.Option) Option {
	return func(s *Service) {
		s.simOpts = append(s.simOpts, opts...)
	}
}

// WithMaxSimulationTrials caps the trials a caller may request.
func WithMaxSimulationTrials(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTrials = n
		}
	}
}

// WithPoolTouchTarget sets the winning score pool sheets are checked against.
func WithPoolTouchTarget(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.poolTarget = n
		}
	}
}
