package http

import (
	"errors"
	"net/http"

	"bilancio/internal/core"

	"github.com/gorilla/mux"
)

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.budget.ListOverrides(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(overrides))
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.DeleteOverride(r.Context(), owner(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetOwner returns the caller's profile; an owner without one gets a bare id.
func (s *Server) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	o, err := s.budget.GetOwner(r.Context(), owner(r))
	if errors.Is(err, core.ErrNotFound) {
		o, err = core.Owner{ID: owner(r)}, nil
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleUpdateOwner sets the contact details used for reminders.
func (s *Server) handleUpdateOwner(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	o := core.Owner{
		ID:          owner(r),
		Email:       sanitizeInput(req.Email),
		DisplayName: sanitizeInput(req.DisplayName),
	}
	if err := s.budget.SaveOwner(r.Context(), o); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
