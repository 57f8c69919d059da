package http

import (
	"fmt"
	"net/http"

	"bilancio/internal/core"

	"github.com/gorilla/mux"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.budget.ListRules(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rules))
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.budget.GetRule(r.Context(), owner(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleCreateRule creates a rule; rules are active unless the body says otherwise.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.toRule(true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.budget.CreateRule(r.Context(), owner(r), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/rules/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateRule replaces a rule. An omitted active flag keeps the stored one.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ruleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	current, err := s.budget.GetRule(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.toRule(current.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.budget.UpdateRule(r.Context(), owner(r), id, rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.DeleteRule(r.Context(), owner(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRuleActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := s.budget.SetRuleActive(r.Context(), owner(r), mux.Vars(r)["id"], active)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

// headerReplacedOverride carries the type of the decision an occurrence request replaced.
const headerReplacedOverride = "X-Replaced-Override"

// handleOccurrence records a paid, postpone or skip decision for the occurrence
// originally scheduled on {date}. Each occurrence keeps one decision: when it
// replaces a different one, X-Replaced-Override names the replaced type. Paying a
// postponed occurrence therefore moves the row back to its scheduled date.
func (s *Server) handleOccurrence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	occurrence, err := core.ParseDate(vars["date"])
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: occurrence date: %v", errBadRequest, err))
		return
	}

	var req occurrenceRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, ownerID, ruleID := r.Context(), owner(r), vars["id"]
	prev, hadPrev, err := s.budget.OccurrenceOverride(ctx, ownerID, ruleID, occurrence)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var o core.Override
	switch vars["action"] {
	case "paid":
		o, err = s.budget.MarkOccurrencePaid(ctx, ownerID, ruleID, occurrence, req.PaidOn)
	case "postpone":
		o, err = s.budget.PostponeOccurrence(ctx, ownerID, ruleID, occurrence, req.NewDate)
	case "skip":
		o, err = s.budget.SkipOccurrence(ctx, ownerID, ruleID, occurrence)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hadPrev && prev.Type != o.Type {
		w.Header().Set(headerReplacedOverride, string(prev.Type))
	}
	writeJSON(w, http.StatusOK, o)
}
