package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.budget.ListEntries(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(entries))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.budget.GetEntry(r.Context(), owner(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toEntry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.budget.CreateEntry(r.Context(), owner(r), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/entries/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toEntry()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.budget.UpdateEntry(r.Context(), owner(r), mux.Vars(r)["id"], e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.DeleteEntry(r.Context(), owner(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
