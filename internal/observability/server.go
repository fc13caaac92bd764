// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves Prometheus metrics and health probes.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// CheckTimeout bounds a single readiness check.
const CheckTimeout = 2 * time.Second

// Check reports whether a dependency is usable. A nil error means ready.
type Check func(ctx context.Context) error

// Metrics are the process-wide gatekeeper metrics not owned by a component.
type Metrics struct {
	PlayersOnline prometheus.Gauge
	Reloads       *prometheus.CounterVec
}

// NewMetrics creates and registers the process-wide metrics.
func NewMetrics(reg prometheus.Registerer, version string) *Metrics {
	m := &Metrics{
		PlayersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_players_online",
			Help: "Players currently connected through the proxy",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_reloads_total",
			Help: "Configuration and message reloads by target and result",
		}, []string{"target", "result"}),
	}
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "gatekeeper_build_info",
		Help:        "Build metadata",
		ConstLabels: prometheus.Labels{"version": version},
	})
	buildInfo.Set(1)

	reg.MustRegister(m.PlayersOnline, m.Reloads, buildInfo)
	return m
}

// RecordReload counts a reload attempt of target.
func (m *Metrics) RecordReload(target string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Reloads.WithLabelValues(target, result).Inc()
}

// Server exposes /metrics and the liveness and readiness probes.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	running    atomic.Bool

	mu     sync.RWMutex
	checks map[string]Check
}

// NewServer creates a server on addr ("host:port") with its own registry.
func NewServer(addr, version string) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  NewMetrics(registry, version),
		checks:   make(map[string]Check),
	}
}

// Registry is where components register their collectors.
func (s *Server) Registry() prometheus.Registerer {
	return s.registry
}

// Gatherer exposes the registry for tests and alternative exporters.
func (s *Server) Gatherer() prometheus.Gatherer {
	return s.registry
}

// Metrics returns the process-wide metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// AddCheck registers a readiness check under name, replacing any previous one.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Handler returns the HTTP routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)
	return mux
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	slog.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness runs every check and lists the failing ones.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	failed := s.runChecks(r.Context())
	if len(failed) == 0 {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // client may disconnect
	w.Write([]byte("not ready: " + strings.Join(failed, ", ") + "\n"))
}

func (s *Server) runChecks(ctx context.Context) []string {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.RUnlock()

	var failed []string
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
		err := check(cctx)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}
