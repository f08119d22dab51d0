// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves the host's metrics, health checks and
// extension status over HTTP.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the host has finished loading extensions.
type ReadinessChecker func() bool

// Registration adds a package's collectors to a registry.
type Registration func(prometheus.Registerer)

// ExtensionState is one row of the /extensions report.
type ExtensionState struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Runtime string `json:"runtime"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// StatusFunc reports the current state of every registered extension.
type StatusFunc func() []ExtensionState

// commandOutputFailures counts console writes that failed. Package-level so
// senders can record failures without a Server.
var commandOutputFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "modhost_command_output_failures_total",
		Help: "Total number of command output write failures by sender",
	},
	[]string{"sender"},
)

// RecordCommandOutputFailure increments the command output failure counter.
func RecordCommandOutputFailure(sender string) {
	commandOutputFailures.WithLabelValues(sender).Inc()
}

// Metrics contains host-level Prometheus metrics.
type Metrics struct {
	ConsoleLines *prometheus.CounterVec
	LoadDuration prometheus.Gauge
}

// NewMetrics creates the host metrics and registers them, together with the
// command output failure counter, on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConsoleLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhost_console_lines_total",
				Help: "Total number of console input lines by outcome",
			},
			[]string{"status"},
		),
		LoadDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modhost_load_duration_seconds",
				Help: "Wall time of the last extension load pass",
			},
		),
	}
	reg.MustRegister(m.ConsoleLines, m.LoadDuration, commandOutputFailures)
	return m
}

// Server exposes /metrics, /healthz/liveness, /healthz/readiness and
// /extensions on one listener.
type Server struct {
	addr       string
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	statusMu sync.RWMutex
	status   StatusFunc
}

// NewServer creates a server for addr ("127.0.0.1:9100", ":0", ...). The
// server owns a private registry holding the Go and process collectors, the
// host metrics and whatever each registration adds.
func NewServer(addr string, readinessChecker ReadinessChecker, registrations ...Registration) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)
	for _, register := range registrations {
		register(registry)
	}

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}
}

// Metrics returns the host metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// SetExtensionStatus installs the source of the /extensions report. Until
// one is installed the report is an empty list.
func (s *Server) SetExtensionStatus(fn StatusFunc) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = fn
}

// routes builds the handler tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	mux.HandleFunc("/extensions", s.handleExtensions)
	return mux
}

// Start listens on the configured address and serves in the background.
// Serve failures are delivered on the returned channel, which is closed
// once the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server listening", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running does
// nothing.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// still running; allow another attempt
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	//nolint:errcheck // the client may already be gone
	w.Write([]byte(body))
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok\n")
}

// handleReadiness answers 503 until the load pass has finished.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.isReady == nil || s.isReady() {
		writeText(w, http.StatusOK, "ok\n")
		return
	}
	writeText(w, http.StatusServiceUnavailable, "loading extensions\n")
}

func (s *Server) handleExtensions(w http.ResponseWriter, _ *http.Request) {
	s.statusMu.RLock()
	fn := s.status
	s.statusMu.RUnlock()

	states := []ExtensionState{}
	if fn != nil {
		if got := fn(); got != nil {
			states = got
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(states); err != nil {
		slog.Warn("failed to write extension status", "error", err)
	}
}
