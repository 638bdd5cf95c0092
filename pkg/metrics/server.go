// HTTP server for the Prometheus metrics endpoint
//
//	srv := metrics.NewServer(metrics.NewMixingMetrics(mixer), ":9100")
//	errCh := srv.StartAsync()
//	defer srv.Shutdown(context.Background())
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mixing-extruder/pkg/log"
)

// Gatherer renders metrics in Prometheus text format.
type Gatherer interface {
	Gather() string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	// Address to listen on (e.g., ":9100" or "127.0.0.1:9100")
	Address string

	// Optional basic auth credentials
	Username string
	Password string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":9100",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves /metrics, /health and /ready.
type Server struct {
	gatherer Gatherer
	cfg      ServerConfig
	server   *http.Server
	logger   *log.Logger

	mu        sync.RWMutex
	running   bool
	listener  net.Listener
	startTime time.Time
}

// NewServer creates a metrics server with the default config.
func NewServer(g Gatherer, addr string) *Server {
	cfg := DefaultServerConfig()
	cfg.Address = addr
	return NewServerWithConfig(g, cfg)
}

// NewServerWithConfig creates a metrics server with a custom config.
func NewServerWithConfig(g Gatherer, cfg ServerConfig) *Server {
	s := &Server{
		gatherer: g,
		cfg:      cfg,
		logger:   log.GetLogger("metrics"),
	}
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	return mux
}

// Start listens and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	s.mu.Lock()
	s.running = true
	s.listener = ln
	s.startTime = time.Now()
	s.mu.Unlock()

	s.logger.WithField("addr", ln.Addr().String()).Info("metrics server listening")
	err = s.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields the serve error,
// if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Address
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	output := s.gatherer.Gather()
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(output)))
		return
	}
	_, _ = w.Write([]byte(output))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK\n"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.IsRunning() {
		_, _ = w.Write([]byte("Ready\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("Not Ready\n"))
}

// checkAuth verifies basic auth if configured
func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Username == "" && s.cfg.Password == "" {
		return true
	}
	username, password, ok := r.BasicAuth()
	if ok &&
		subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1 {
		return true
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="Mixer Metrics"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
	return false
}
