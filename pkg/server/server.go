package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"aratta-hq/aratta/pkg/audit"
	"aratta-hq/aratta/pkg/config"
	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/resilience"
	"aratta-hq/aratta/pkg/routing"
	"aratta-hq/aratta/pkg/telemetry/metrics"
)

// Version is the gateway release, stamped at build time.
var Version = "0.1.0"

const shutdownTimeout = 15 * time.Second

// Deps carries the server's collaborators. Registry, Resolver, and
// Router are required; everything else degrades to a 503 admin
// response or a no-op when nil.
type Deps struct {
	Registry *providers.Registry
	Resolver *providers.Resolver
	Router   *routing.Router
	Breaker  *resilience.CircuitBreaker
	Monitor  *resilience.HealthMonitor
	Reloader *resilience.ReloadManager
	Healer   *resilience.HealWorker
	Metrics  *metrics.Metrics
	Audit    *audit.Store
}

// Server is the gateway's HTTP front.
type Server struct {
	config   *config.Config
	registry *providers.Registry
	resolver *providers.Resolver
	router   *routing.Router
	breaker  *resilience.CircuitBreaker
	monitor  *resilience.HealthMonitor
	reloader *resilience.ReloadManager
	healer   *resilience.HealWorker
	metrics  *metrics.Metrics
	audit    *audit.Store

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu      sync.RWMutex
	running bool
}

// NewServer wires a server and registers the heal callback on the
// health monitor when healing is configured.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:   cfg,
		registry: deps.Registry,
		resolver: deps.Resolver,
		router:   deps.Router,
		breaker:  deps.Breaker,
		monitor:  deps.Monitor,
		reloader: deps.Reloader,
		healer:   deps.Healer,
		metrics:  deps.Metrics,
		audit:    deps.Audit,
	}
	if s.monitor != nil && s.healer != nil && s.reloader != nil {
		s.monitor.OnHealRequest(s.onHealRequest)
	}
	if s.breaker != nil && s.metrics != nil {
		s.breaker.OnStateChange(func(provider string, state resilience.CircuitState) {
			s.metrics.SetCircuitState(provider, string(state))
		})
	}
	return s
}

// Start runs the HTTP server and blocks until the context is cancelled
// or a shutdown signal arrives.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("gateway listening",
			"address", addr,
			"default_provider", s.config.Behavior.DefaultProvider,
			"providers", s.config.AvailableProviders(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests and closes every provider.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		if s.registry != nil {
			if err := s.registry.Close(); err != nil {
				slog.Warn("error closing providers", "error", err)
			}
		}
		if s.audit != nil {
			if err := s.audit.Close(); err != nil {
				slog.Warn("error closing audit store", "error", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		slog.Info("gateway stopped")
	})
	return shutdownErr
}

// Running reports whether Start has been called and not yet shut down.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleLiveness)

	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("POST /api/v1/embed", s.handleEmbed)
	mux.HandleFunc("GET /api/v1/models", s.handleModels)
	mux.HandleFunc("GET /api/v1/health", s.handleProviderHealth)

	mux.HandleFunc("POST /api/v1/circuit/{provider}/open", s.handleCircuitOpen)
	mux.HandleFunc("POST /api/v1/circuit/{provider}/close", s.handleCircuitClose)
	mux.HandleFunc("POST /api/v1/circuit/{provider}/reset", s.handleCircuitReset)

	mux.HandleFunc("GET /api/v1/healing/status", s.handleHealingStatus)
	mux.HandleFunc("POST /api/v1/healing/pause/{provider}", s.handleHealingPause)
	mux.HandleFunc("POST /api/v1/healing/resume/{provider}", s.handleHealingResume)

	mux.HandleFunc("GET /api/v1/fixes/pending", s.handlePendingFixes)
	mux.HandleFunc("POST /api/v1/fixes/{provider}/approve", s.handleApproveFix)
	mux.HandleFunc("POST /api/v1/fixes/{provider}/reject", s.handleRejectFix)
	mux.HandleFunc("GET /api/v1/fixes/{provider}/history", s.handleFixHistory)
	mux.HandleFunc("POST /api/v1/fixes/{provider}/rollback/{version}", s.handleRollback)

	mux.HandleFunc("GET /api/v1/metrics", s.handleMetricsSummary)
	mux.HandleFunc("GET /api/v1/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/v1/audit/recent", s.handleAuditRecent)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
