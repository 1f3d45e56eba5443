package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/printwatch/internal/audit"
	"github.com/nerrad567/printwatch/internal/infrastructure/config"
	"github.com/nerrad567/printwatch/internal/infrastructure/logging"
	"github.com/nerrad567/printwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/printwatch/internal/printer"
	"github.com/nerrad567/printwatch/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Service  *printer.Service
	Store    *store.MessageStore
	Audit    audit.Repository // optional; commands are not audited without it
	Broker   BrokerStatus     // optional; nil when running read-only
	Version  string
}

// BrokerStatus reports the broker connection. Satisfied by *mqtt.Client.
type BrokerStatus interface {
	Stats() mqtt.Stats
}

// Server is the HTTP API server for printwatch.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	service *printer.Service
	store   *store.MessageStore
	audit   audit.Repository
	broker  BrokerStatus
	version string

	hub   *Hub
	relay *relay

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	workers  sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger, Service and Store are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("printer service is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("message store is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		service: deps.Service,
		store:   deps.Store,
		audit:   deps.Audit,
		broker:  deps.Broker,
		version: deps.Version,
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	s.relay = newRelay(s.store, s.service, s.hub, s.logger)

	return s, nil
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It binds the listener synchronously (so a port conflict is returned here),
// starts the WebSocket hub and the store relay, then serves in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and relay goroutines
//
// Returns:
//   - error: If the listener cannot be bound or TLS files cannot be loaded
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	s.server = srv
	s.listener = ln
	s.cancel = cancel
	s.done = make(chan struct{})

	detach := s.relay.attach()
	s.workers.Add(2)
	go func() {
		defer s.workers.Done()
		s.hub.Run(srvCtx)
	}()
	go func() {
		defer s.workers.Done()
		s.relay.Run(srvCtx, detach)
	}()

	go func() {
		defer close(s.done)

		var serveErr error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			serveErr = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			serveErr = srv.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It stops the hub and relay, then waits up to 10 seconds for in-flight
// requests to complete before forcefully closing remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel, done := s.server, s.cancel, s.done
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer stop()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	<-done
	s.workers.Wait()
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
