package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
)

// handleUserSummary reports the spending summary of the user in the path.
// Optional from and to (YYYY-MM) narrow the category and month rollups.
func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(chi.URLParam(r, "userID"))
	if !ok {
		writeError(w, r, core.ErrUserNotFound)
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Summaries.UserSummary(r.Context(), userID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newSummaryResponse(summary))
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actingUser(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := s.deps.Summaries.MonthlySummary(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"monthly_summary": newMonthTotals(months)})
}

func parsePeriod(r *http.Request) (core.Period, error) {
	var p core.Period
	verr := core.NewValidationError()
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		ym, err := core.ParseYearMonth(v)
		if err != nil {
			verr.Add("from", "Enter a valid month in YYYY-MM format.")
		}
		p.From = ym
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		ym, err := core.ParseYearMonth(v)
		if err != nil {
			verr.Add("to", "Enter a valid month in YYYY-MM format.")
		}
		p.To = ym
	}
	if err := verr.Err(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}
