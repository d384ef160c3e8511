package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/journal"
	"github.com/nerrad567/gray-logic-access/internal/network"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusSource is implemented by *access.Cycle.
type StatusSource interface {
	Snapshot() access.Snapshot
}

// LinkStatus is implemented by *network.Link.
type LinkStatus interface {
	Status() network.Status
}

// HealthChecker is implemented by the infrastructure clients
// (*database.DB, *mqtt.Client, *influxdb.Client).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// JournalReader is the read side of journal.Repository.
type JournalReader interface {
	List(ctx context.Context, f journal.Filter) (*journal.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Version  string
	Exposure pseudonym.Exposure

	// Status is required.
	Status StatusSource

	// Optional collaborators; their routes report 503 or are omitted when nil.
	Link     LinkStatus
	Journal  JournalReader
	Checks   map[string]HealthChecker
	Gatherer prometheus.Gatherer
}

// Server is the HTTP status server.
//
// It owns the listener, the router and the WebSocket hub. The hub exists
// from New onwards so it can be registered as an outcome observer before
// the server starts.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	version  string
	exposure pseudonym.Exposure
	status   StatusSource
	link     LinkStatus
	journal  JournalReader
	checks   map[string]HealthChecker
	gatherer prometheus.Gatherer
	hub      *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		version:  deps.Version,
		exposure: deps.Exposure,
		status:   deps.Status,
		link:     deps.Link,
		journal:  deps.Journal,
		checks:   deps.Checks,
		gatherer: deps.Gatherer,
		hub:      NewHub(deps.WS, deps.Exposure, deps.Logger),
	}, nil
}

// Hub returns the live outcome hub. Register it with the access cycle's
// observers to stream outcomes to WebSocket clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in a background goroutine.
// Binding happens synchronously so a port already in use is reported here.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
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
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.Addr() == "" {
		return fmt.Errorf("api server not started")
	}
	return nil
}
