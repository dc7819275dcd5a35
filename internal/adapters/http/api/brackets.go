package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/piste/internal/adapters/sheets"
	"github.com/okian/piste/internal/domain/bracket"
)

type createBracketRequest struct {
	Seeds []string `json:"seeds"`
}

// handleCreateBracket handles POST /bracket. The body is optional.
func (s *Server) handleCreateBracket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req createBracketRequest
	if err := decode(r, &req, true); err != nil {
		writeServiceError(w, err)
		return
	}
	b, err := t.CreateBracket(r.Context(), req.Seeds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleGetBracket handles GET /bracket.
func (s *Server) handleGetBracket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	b, err := t.Bracket()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleDeleteBracket handles DELETE /bracket.
func (s *Server) handleDeleteBracket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	if err := t.DeleteBracket(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStandings handles GET /bracket/standings[?format=xlsx].
func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	b, err := t.Bracket()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "xlsx" {
		writeWorkbook(w, t.Event()+"-standings.xlsx", func(wr io.Writer) error {
			return sheets.ExportStandings(wr, b)
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": b.Status, "standings": b.Standings})
}

type reportRequest struct {
	TopScore    *int               `json:"top_score"`
	BottomScore *int               `json:"bottom_score"`
	Signatures  bracket.Signatures `json:"signatures"`
}

// handleReport handles POST /bracket/bouts/{boutID}/report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req reportRequest
	if err := decode(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.TopScore == nil || req.BottomScore == nil {
		writeServiceError(w, fmt.Errorf("%w: top_score and bottom_score are required", ErrBadRequest))
		return
	}
	rep, err := t.ReportBout(r.Context(), chi.URLParam(r, "boutID"), *req.TopScore, *req.BottomScore, req.Signatures)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleReferee handles POST /bracket/bouts/{boutID}/referee.
func (s *Server) handleReferee(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req bracket.RefereeAssignment
	if err := decode(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	bt, err := t.AssignReferee(r.Context(), chi.URLParam(r, "boutID"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bt)
}

// handleRefereeBouts handles GET /api/v1/referees/{refereeID}/bouts.
func (s *Server) handleRefereeBouts(w http.ResponseWriter, r *http.Request) {
	bouts := s.deps.RefereeBouts(chi.URLParam(r, "refereeID"))
	writeJSON(w, http.StatusOK, map[string][]bracket.RefereeBout{"bouts": bouts})
}
