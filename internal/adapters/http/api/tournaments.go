package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/piste/internal/adapters/sheets"
	service "github.com/okian/piste/internal/app"
	"github.com/okian/piste/internal/domain/rating"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type createTournamentRequest struct {
	Event    string                `json:"event"`
	Entrants []rating.EntrantInput `json:"entrants"`
}

type tournamentResponse struct {
	Event    string           `json:"event"`
	Entrants []rating.Entrant `json:"entrants"`
}

// handleCreateTournament handles POST /api/v1/tournaments.
func (s *Server) handleCreateTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := decode(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := s.deps.CreateTournament(r.Context(), req.Event, req.Entrants)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tournamentResponse{Event: t.Event(), Entrants: t.Entrants()})
}

// handleListTournaments handles GET /api/v1/tournaments.
func (s *Server) handleListTournaments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]service.Summary{"tournaments": s.deps.Tournaments()})
}

// handleIngestPool handles POST /pools. The body is either a JSON pool sheet
// or an XLSX workbook; for workbooks ?pool_id= overrides the derived id.
func (s *Server) handleIngestPool(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var sheet rating.PoolSheet
	if strings.HasPrefix(r.Header.Get("Content-Type"), xlsxContentType) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeServiceError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		opts := []sheets.ImportOption{sheets.WithPoolID(r.URL.Query().Get("pool_id"))}
		if sheet, err = sheets.ImportPool(bytes.NewReader(data), opts...); err != nil {
			writeServiceError(w, err)
			return
		}
	} else if err := decode(r, &sheet, false); err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := t.IngestPool(r.Context(), sheet)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

type addBoutRequest struct {
	EntrantA string `json:"entrant_a"`
	EntrantB string `json:"entrant_b"`
	ScoreA   *int   `json:"score_a"`
	ScoreB   *int   `json:"score_b"`
}

// handleAddBout handles POST /bouts.
func (s *Server) handleAddBout(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req addBoutRequest
	if err := decode(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.ScoreA == nil || req.ScoreB == nil {
		writeServiceError(w, fmt.Errorf("%w: score_a and score_b are required", ErrBadRequest))
		return
	}
	out, err := t.AddBout(r.Context(), req.EntrantA, req.EntrantB, *req.ScoreA, *req.ScoreB)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleListBouts handles GET /bouts, newest first.
func (s *Server) handleListBouts(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]rating.Bout{"bouts": t.Bouts()})
}

// handleRanking handles GET /ranking. ?format=xlsx returns a workbook.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	ranking := t.Ranking()
	if r.URL.Query().Get("format") == "xlsx" {
		writeWorkbook(w, t.Event()+"-ranking.xlsx", func(wr io.Writer) error {
			return sheets.ExportRanking(wr, ranking)
		})
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

// resolve accepts an id or anything Find matches.
func resolve(t *service.Tournament, query string) string {
	if e, ok := t.Find(query); ok {
		return e.ID
	}
	return query
}

// handlePairwise handles GET /pairwise?a=&b=.
func (s *Server) handlePairwise(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		writeServiceError(w, fmt.Errorf("%w: a and b are required", ErrBadRequest))
		return
	}
	pw, err := t.Pairwise(resolve(t, a), resolve(t, b))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pw)
}

// handleEntrant handles GET /entrants/{id}.
func (s *Server) handleEntrant(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	d, err := t.Detail(resolve(t, chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleTrajectory handles GET /trajectory[?entrant=].
func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	if id := r.URL.Query().Get("entrant"); id != "" {
		pts, err := t.EntrantTrajectory(resolve(t, id))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]rating.EntrantPoint{"points": pts})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]rating.Snapshot{"snapshots": t.Trajectory()})
}

// handleSimulation handles GET /simulation[?n=].
func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	trials := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeServiceError(w, fmt.Errorf("%w: n must be a positive integer", ErrBadRequest))
			return
		}
		trials = n
	}
	p, err := t.Simulate(r.Context(), trials)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeWorkbook(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
