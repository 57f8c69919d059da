package http

import (
	"fmt"
	"net/http"
	"strings"

	"bilancio/internal/core"
)

// handleSnapshot serves one month (?month=YYYY-MM) or a month range
// (?start=&end=, both ISO dates). Without parameters it serves the current month.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month := strings.TrimSpace(q.Get("month"))

	start, hasStart, err := queryDate(q, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, hasEnd, err := queryDate(q, "end")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var snap core.Snapshot
	switch {
	case month != "" && (hasStart || hasEnd):
		writeError(w, r, fmt.Errorf("%w: use either month or start/end", errBadRequest))
		return
	case hasStart || hasEnd:
		if !hasStart || !hasEnd {
			writeError(w, r, fmt.Errorf("%w: start and end are both required", errBadRequest))
			return
		}
		snap, err = s.budget.Snapshot(r.Context(), owner(r), start, end)
	default:
		if month == "" {
			month = currentMonth(s.budget.Today())
		}
		snap, err = s.budget.MonthSnapshot(r.Context(), owner(r), month)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleUnpaid serves unpaid rows in [start, end). Missing bounds default to the
// current month.
func (s *Server) handleUnpaid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := s.budget.Today()

	start, ok, err := queryDate(q, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		start = today.FirstOfMonth()
	}
	end, ok, err := queryDate(q, "end")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		end = core.NewDate(start.Year(), start.Month()+1, 1)
	}

	snap, err := s.budget.UnpaidInRange(r.Context(), owner(r), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type exportResponse struct {
	Month string `json:"month"`
	Ref   string `json:"ref"`
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = currentMonth(s.budget.Today())
	}
	ref, err := s.budget.ExportSnapshot(r.Context(), owner(r), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Month: month, Ref: ref})
}

func currentMonth(today core.Date) string {
	return fmt.Sprintf("%04d-%02d", today.Year(), today.Month())
}
