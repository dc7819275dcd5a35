// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/piste/internal/app"
	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/errs"
)

// maxBodyBytes bounds JSON and workbook uploads.
const maxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	CreateTournament(ctx context.Context, event string, roster []rating.EntrantInput) (*service.Tournament, error)
	Tournament(event string) (*service.Tournament, error)
	Tournaments() []service.Summary
	RefereeBouts(refereeID string) []bracket.RefereeBout
}

// Server wires HTTP routes for the tournament API.
type Server struct {
	deps    Dependencies
	stats   StatsProvider
	limiter *IPRateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter throttles mutating endpoints per client address.
func WithRateLimiter(l *IPRateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{deps: deps, stats: statsProvider}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, MetricsMiddleware)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", metricsHandler())
	r.Get("/stats", NewStatsHandler(s.stats).HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		mutating := r.With(s.rateLimit)

		mutating.Post("/tournaments", s.handleCreateTournament)
		r.Get("/tournaments", s.handleListTournaments)
		r.Get("/referees/{refereeID}/bouts", s.handleRefereeBouts)

		r.Route("/tournaments/{event}", func(r chi.Router) {
			mutating := r.With(s.rateLimit)

			mutating.Post("/pools", s.handleIngestPool)
			mutating.Post("/bouts", s.handleAddBout)
			r.Get("/bouts", s.handleListBouts)
			r.Get("/ranking", s.handleRanking)
			r.Get("/pairwise", s.handlePairwise)
			r.Get("/entrants/{id}", s.handleEntrant)
			r.Get("/trajectory", s.handleTrajectory)
			r.Get("/simulation", s.handleSimulation)

			mutating.Post("/bracket", s.handleCreateBracket)
			r.Get("/bracket", s.handleGetBracket)
			mutating.Delete("/bracket", s.handleDeleteBracket)
			r.Get("/bracket/standings", s.handleStandings)
			mutating.Post("/bracket/bouts/{boutID}/report", s.handleReport)
			mutating.Post("/bracket/bouts/{boutID}/referee", s.handleReferee)
		})
	})
}

// Handler returns a fresh router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps error kinds to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsValidation(err), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err)
	case errs.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decode reads a JSON body. An empty body leaves v untouched when optional.
func decode(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func (s *Server) tournament(w http.ResponseWriter, r *http.Request) (*service.Tournament, bool) {
	t, err := s.deps.Tournament(chi.URLParam(r, "event"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return t, true
}
