// Package service hosts one rating and bracket engine per tournament and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/piste/internal/adapters/mq/publisher"
	eventqueue "github.com/okian/piste/internal/adapters/mq/queue"
	workerpool "github.com/okian/piste/internal/adapters/mq/worker"
	"github.com/okian/piste/internal/adapters/repository"
	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/dedupe"
	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/internal/domain/pool"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/internal/domain/simulate"
	"github.com/okian/piste/pkg/errs"
	"github.com/okian/piste/pkg/logger"
	"github.com/okian/piste/pkg/metrics"
)

// Service is the registry of tournaments. Each tournament is an independent
// engine with its own lock; the registry lock only guards the map.
type Service struct {
	mu sync.RWMutex

	tournaments map[string]*Tournament

	ledger     repository.Ledger
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	publisher  workerpool.Publisher
	workerPool *workerpool.Pool
	builder    *bracket.Builder
	advancer   *bracket.Advancer
	simulator  *simulate.Simulator

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	maxTrials   int
	poolTarget  int
	ratingOpts  []rating.Option
	bracketOpts []bracket.Option
	simOpts     []simulate.Option

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tournaments: make(map[string]*Tournament),
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50000,
		maxTrials:   100_000,
		poolTarget:  pool.DefaultMaxScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the components, replays the ledger and starts notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting tournament service...")

	if s.ledger == nil {
		s.ledger = repository.NewMemory()
		s.logger.Info(ctx, "using in-memory ledger")
	}
	if s.publisher == nil {
		s.publisher = publisher.NewLogSink(logger.Get().Named("notify"))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.builder = bracket.NewBuilder(s.bracketOpts...)
	s.advancer = bracket.NewAdvancer(s.bracketOpts...)
	s.simulator = simulate.New(s.simOpts...)

	if err := s.replay(ctx); err != nil {
		return err
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.publisher)
	s.workerPool.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	metrics.UpdateTournaments(len(s.tournaments))
	s.logger.Info(ctx, "tournament service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("tournaments", len(s.tournaments)),
	)
	return nil
}

// replay rebuilds every persisted tournament. Caller holds s.mu.
func (s *Service) replay(ctx context.Context) error {
	stored, err := s.ledger.Tournaments(ctx)
	if err != nil {
		return errs.Wrap("service.replay", err)
	}
	for _, st := range stored {
		t, err := s.newTournament(st.Event, st.Roster)
		if err != nil {
			s.logger.Error(ctx, "skipping stored tournament", logger.String("event", st.Event), logger.Error(err))
			continue
		}
		bouts, err := s.ledger.Bouts(ctx, st.Event)
		if err != nil {
			return errs.Wrap("service.replay", err)
		}
		if err := t.restore(ctx, bouts); err != nil {
			s.logger.Error(ctx, "ledger replay failed", logger.String("event", st.Event), logger.Error(err))
			continue
		}
		s.tournaments[st.Event] = t
	}
	return nil
}

// Stop drains pending notifications and releases the ledger.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping tournament service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if s.ledger != nil {
		s.ledger.Close()
	}
	s.started = false
	s.logger.Info(ctx, "tournament service stopped")
}

func (s *Service) newTournament(event string, roster []rating.EntrantInput) (*Tournament, error) {
	t := &Tournament{
		event: event,
		store: rating.NewStore(s.ratingOpts...),
		pools: make(map[string][]pool.Result),
		svc:   s,
		log:   s.logger.With(logger.String("event", event)),
	}
	for _, in := range roster {
		in.Event = event
		if _, err := t.store.Register(in); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// CreateTournament registers a new event with its roster.
func (s *Service) CreateTournament(ctx context.Context, event string, roster []rating.EntrantInput) (*Tournament, error) {
	const op = "service.CreateTournament"
	event = strings.TrimSpace(event)
	if event == "" {
		return nil, errs.WrapKind(op, errs.ErrValidation, ErrEmptyEvent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, errs.Wrap(op, ErrNotStarted)
	}
	if _, ok := s.tournaments[event]; ok {
		return nil, errs.Validationf(op, "%w: %s", ErrTournamentExists, event)
	}
	t, err := s.newTournament(event, roster)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	err = s.ledger.SaveTournament(ctx, repository.Tournament{
		Event:     event,
		Roster:    roster,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	s.tournaments[event] = t
	metrics.UpdateTournaments(len(s.tournaments))
	s.logger.Info(ctx, "tournament created", logger.String("event", event), logger.Int("entrants", len(roster)))
	return t, nil
}

// Tournament returns the engine of event.
func (s *Service) Tournament(event string) (*Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[event]
	if !ok {
		return nil, errs.NotFoundf("service.Tournament", "%w: %s", ErrUnknownEvent, event)
	}
	return t, nil
}

// Summary is a line of the tournament list.
type Summary struct {
	Event         string        `json:"event"`
	Entrants      int           `json:"entrants"`
	Bouts         int           `json:"bouts"`
	Pools         int           `json:"pools"`
	BracketStatus bracket.State `json:"bracket_status,omitempty"`
}

// Tournaments lists every event by name.
func (s *Service) Tournaments() []Summary {
	s.mu.RLock()
	list := make([]*Tournament, 0, len(s.tournaments))
	for _, t := range s.tournaments {
		list = append(list, t)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(list))
	for _, t := range list {
		out = append(out, t.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event < out[j].Event })
	return out
}

// RefereeBouts returns the bracket bouts assigned to refereeID across events.
func (s *Service) RefereeBouts(refereeID string) []bracket.RefereeBout {
	s.mu.RLock()
	list := make([]*Tournament, 0, len(s.tournaments))
	for _, t := range s.tournaments {
		list = append(list, t)
	}
	s.mu.RUnlock()

	out := []bracket.RefereeBout{}
	for _, t := range list {
		out = append(out, t.refereeBouts(refereeID)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Event != out[j].Event {
			return out[i].Event < out[j].Event
		}
		return out[i].Bout.ID < out[j].Bout.ID
	})
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"tournaments": len(s.tournaments),
	}
	if s.started {
		queueLen := s.eventQueue.Len()
		stats["queueLength"] = queueLen
		stats["notificationsPublished"] = s.workerPool.Processed()
		stats["poolKeys"] = s.deduper.Size()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

		bouts := 0
		for _, t := range s.tournaments {
			bouts += t.boutCount()
		}
		stats["bouts"] = bouts

		metrics.UpdateNotifyQueueSize(queueLen)
		metrics.UpdateTournaments(len(s.tournaments))
	}
	return stats
}

// notify enqueues n without blocking. The queue counts drops.
func (s *Service) notify(ctx context.Context, n model.Notification) {
	if s.eventQueue == nil {
		return
	}
	if err := s.eventQueue.Enqueue(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn(ctx, "notification dropped",
			logger.String("type", string(n.Type)),
			logger.String("event", n.Event),
			logger.Error(err),
		)
	}
}
