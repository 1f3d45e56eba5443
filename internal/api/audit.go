package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/printwatch/internal/audit"
)

// recordAudit writes an audit entry for a successful command. Failures are
// logged; the command has already happened.
func (s *Server) recordAudit(r *http.Request, action, target string, details map[string]any) {
	if s.audit == nil {
		return
	}

	var subject string
	if claims := claimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}

	entry := &audit.Log{
		Action:  action,
		Target:  target,
		Subject: subject,
		Details: details,
	}
	if err := s.audit.Create(r.Context(), entry); err != nil {
		s.logger.Warn("failed to record audit log",
			"action", action,
			"target", target,
			"error", err,
			"request_id", requestID(r.Context()),
		)
	}
}

// handleListAudit returns operator commands, newest first.
// Query parameters: action, target, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Target: q.Get("target"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
