package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schemalens/schemalens/internal/analysis"
	"github.com/schemalens/schemalens/internal/cache"
	"github.com/schemalens/schemalens/internal/ledger"
	"github.com/schemalens/schemalens/internal/store"
)

// Config holds the service configuration. Zero values select the defaults.
type Config struct {
	// Host and Port form the listen address. Port 0 selects an ephemeral
	// port, readable from Addr after Start.
	Host string
	Port int

	// Workers and QueueSize bound the analysis worker pool.
	Workers   int
	QueueSize int

	// Cache fronts document reads when non-nil.
	Cache cache.Cache

	// DocumentStore is consulted for document reads before the artifact
	// file, typically one of the runner's mirrors.
	DocumentStore store.Store

	// Timeouts. Websocket streams are unaffected by WriteTimeout since the
	// upgrade hijacks the connection.
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration

	// MaxHeaderBytes caps request header size.
	MaxHeaderBytes int
}

// DefaultConfig returns a production-ready service configuration.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              8080,
		Workers:           DefaultWorkers,
		QueueSize:         DefaultQueueSize,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Server ties the HTTP API, worker pool and event hub together.
type Server struct {
	config Config
	http   *http.Server
	pool   *WorkerPool
	hub    *Hub
	logger *zap.Logger

	mu           sync.Mutex
	listener     net.Listener
	shutdownOnce sync.Once
}

// NewServer builds a service around the given analysis options. The runner
// is constructed here so its status transitions feed the event hub. Ledger
// must be set; everything else falls back to defaults.
func NewServer(cfg Config, opts analysis.Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("service requires a ledger")
	}

	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = defaults.MaxHeaderBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := NewHub(logger)
	opts.Notify = func(runID string, status ledger.Status) {
		hub.Publish(statusEvent(runID, status))
	}
	runner := analysis.NewRunner(opts)
	pool := NewWorkerPool(runner, opts.Ledger, cfg.Workers, cfg.QueueSize, logger)
	api := NewAPI(opts.Ledger, pool, hub, cfg.Cache, cfg.DocumentStore, logger)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           api.Routes(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	return &Server{
		config: cfg,
		http:   httpServer,
		pool:   pool,
		hub:    hub,
		logger: logger,
	}, nil
}

// Start launches the worker pool and serves HTTP until Shutdown or a
// listener error. ctx bounds the workers, not the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("service listen on %s: %w", s.http.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.pool.Start(ctx)
	s.logger.Info("service listening", zap.String("addr", listener.Addr().String()))

	if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP connections within ctx, then stops the workers and
// closes the event hub, which ends any remaining websocket streams. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("service shutting down")
		err = s.http.Shutdown(ctx)
		s.pool.Stop()
		s.hub.Close()
	})
	return err
}

// Addr returns the bound address once Start has created the listener, the
// configured address before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}
