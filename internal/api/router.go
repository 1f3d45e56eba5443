package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.authMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/components", func(r chi.Router) {
			r.Get("/", s.handleListComponents)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetComponent)
				r.Get("/history", s.handleComponentHistory)

				r.With(s.requireOperator).Patch("/", s.handleUpdateComponent)
				r.With(s.requireOperator).Post("/cancel", s.handleCancelPrint)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Get("/latest", s.handleLatestMessage)
			r.Get("/{direction}", s.handleMessagesByDirection)

			r.With(s.requireOperator).Post("/publish", s.handlePublish)
			r.With(s.requireOperator).Delete("/", s.handleClearMessages)
		})

		r.Get("/audit", s.handleListAudit)

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status. Without a broker connection
// the dashboard is read-only and the status is "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	incoming, outgoing := s.store.Len()

	status := "ok"
	var broker any = map[string]bool{"connected": false}
	if s.broker != nil {
		stats := s.broker.Stats()
		broker = stats
		if !stats.Connected {
			status = "degraded"
		}
	} else {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"store": map[string]int{
			"incoming": incoming,
			"outgoing": outgoing,
		},
		"broker":            broker,
		"websocket_clients": s.hub.ClientCount(),
	})
}

// wsPath is the WebSocket route under /api/v1, from websocket.path.
func (s *Server) wsPath() string {
	p := s.wsCfg.Path
	if p == "" {
		return "/ws"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
