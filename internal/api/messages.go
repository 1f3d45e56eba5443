package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/printwatch/internal/audit"
	"github.com/nerrad567/printwatch/internal/store"
	"github.com/nerrad567/printwatch/internal/topic"
)

// maxQoS is the highest MQTT quality of service level.
const maxQoS = 2

// PublishRequest is the body of POST /messages/publish.
type PublishRequest struct {
	Topic    string `json:"topic"`
	Payload  string `json:"payload"`
	QoS      *int   `json:"qos,omitempty"`
	Retained bool   `json:"retained"`
}

// handleListMessages returns the latest entry per topic matching filter
// (default "#"), whichever direction is newer.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = topic.MultiLevel
	}
	if !topic.ValidFilter(filter) {
		writeBadRequest(w, "invalid topic filter")
		return
	}

	entries := s.store.GetLatestByWildcardTopic(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"filter":   filter,
		"messages": entries,
		"count":    len(entries),
	})
}

// handleLatestMessage returns the newest entry for one exact topic.
func (s *Server) handleLatestMessage(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("topic")
	if !topic.ValidTopic(t) {
		writeBadRequest(w, "topic must be non-empty and contain no wildcards")
		return
	}

	entry, ok := s.store.GetLatestValue(t)
	if !ok {
		writeNotFound(w, "no message on topic")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleMessagesByDirection returns every entry of one direction.
func (s *Server) handleMessagesByDirection(w http.ResponseWriter, r *http.Request) {
	var entries []store.Entry
	switch store.Direction(chi.URLParam(r, "direction")) {
	case store.DirectionIncoming:
		entries = s.store.GetAllLatestIncoming()
	case store.DirectionOutgoing:
		entries = s.store.GetAllLatestOutgoing()
	default:
		writeNotFound(w, "direction must be incoming or outgoing")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": entries,
		"count":    len(entries),
	})
}

// handlePublish sends a message to the broker and records it as outgoing.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	qos := s.service.QoS()
	if req.QoS != nil {
		if *req.QoS < 0 || *req.QoS > maxQoS {
			writeBadRequest(w, "qos must be 0, 1 or 2")
			return
		}
		qos = byte(*req.QoS)
	}

	if err := s.service.Publish(r.Context(), req.Topic, []byte(req.Payload), qos, req.Retained); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.recordAudit(r, audit.ActionPublish, req.Topic, map[string]any{
		"qos":      qos,
		"retained": req.Retained,
		"bytes":    len(req.Payload),
	})

	entry, _ := s.store.GetLatestOutgoing(req.Topic) //nolint:errcheck // just recorded by Publish
	writeJSON(w, http.StatusAccepted, entry)
}

// handleClearMessages empties one or both caches.
// Query parameters: direction=incoming|outgoing|all (default all).
func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	switch direction {
	case string(store.DirectionIncoming):
		s.store.ClearIncoming()
	case string(store.DirectionOutgoing):
		s.store.ClearOutgoing()
	case "", "all":
		direction = "all"
		s.store.ClearAll()
	default:
		writeBadRequest(w, "direction must be incoming, outgoing or all")
		return
	}

	s.logger.Info("message store cleared", "direction", direction, "request_id", requestID(r.Context()))
	s.recordAudit(r, audit.ActionClearMessages, direction, nil)
	w.WriteHeader(http.StatusNoContent)
}
