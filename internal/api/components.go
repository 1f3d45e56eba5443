package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/printwatch/internal/audit"
	"github.com/nerrad567/printwatch/internal/printer"
)

// handleListComponents returns the latest state of every component, keyed by
// component name.
func (s *Server) handleListComponents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"components": s.service.Components(),
	})
}

// handleGetComponent returns one component's latest state.
func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Component(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component": state,
		"progress":  state.Progress(),
	})
}

// handleComponentHistory returns recorded states of a component, newest first.
// Query parameters: limit (default and cap applied by the repository).
func (s *Server) handleComponentHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	id := chi.URLParam(r, "id")
	entries, err := s.service.History(r.Context(), id, limit)
	switch {
	case err == nil:
	case errors.Is(err, printer.ErrInvalidComponentID), errors.Is(err, printer.ErrNoHistory):
		s.writeServiceError(w, r, err)
		return
	default:
		s.logger.Error("failed to list component history", "component", id, "error", err)
		writeInternalError(w, "failed to list history")
		return
	}

	if entries == nil {
		entries = []printer.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component": id,
		"history":   entries,
		"count":     len(entries),
	})
}

// handleCancelPrint cancels a printing component and publishes the updated
// components payload.
func (s *Server) handleCancelPrint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.CancelPrint(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionCancelPrint, id, nil)

	state, err := s.service.Component(id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"component": state,
	})
}

// handleUpdateComponent merges a JSON object into a component's state and
// publishes the result on the component topic.
func (s *Server) handleUpdateComponent(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeBadRequest(w, "request body must be a JSON object")
		return
	}
	if partial == nil {
		writeBadRequest(w, "request body must be a JSON object")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.service.UpdateComponent(r.Context(), id, partial); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionUpdateComponent, id, partial)

	entry, ok := s.store.GetLatestOutgoing(s.service.ComponentTopic(id))
	if !ok {
		writeInternalError(w, "updated component missing from store")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":   entry.Topic,
		"payload": json.RawMessage(entry.Payload),
	})
}
