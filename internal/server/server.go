// Package server exposes the redaction engine over HTTP for tool clients
// and dashboards. The engine itself is transport-agnostic; everything here
// is a thin shell around internal/service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/cache"
	"github.com/veilengine/veil/internal/config"
	"github.com/veilengine/veil/internal/logger"
	"github.com/veilengine/veil/internal/monitor"
	"github.com/veilengine/veil/internal/redact"
	"github.com/veilengine/veil/internal/service"
	"github.com/veilengine/veil/internal/websocket"
)

// Server hosts the engine's HTTP surface.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	service *service.Service
	cache   *cache.PatternCache
	monitor *monitor.Monitor
	hub     *websocket.Hub
	limiter *rateLimiter
	router  *mux.Router
	server  *http.Server
	done    chan struct{}

	// policy is read on every request goroutine and swapped by config hot
	// reload.
	policy atomic.Pointer[redact.Policy]
}

// New creates the HTTP server around an assembled engine.
func New(
	cfg *config.Config,
	svc *service.Service,
	pc *cache.PatternCache,
	mon *monitor.Monitor,
	policy *redact.Policy,
	log *logger.Logger,
) *Server {
	hub := websocket.NewHub(log.WithComponent("websocket"))

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		service: svc,
		cache:   pc,
		monitor: mon,
		hub:     hub,
		limiter: newRateLimiter(cfg.Server.RequestsPerSec, cfg.Server.Burst),
		router:  mux.NewRouter(),
		done:    make(chan struct{}),
	}
	s.policy.Store(policy)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Memory alerts go out to dashboard clients as they happen.
	mon.Subscribe(func(event monitor.Event) {
		hub.Broadcast(websocket.EventTypeMemoryAlert, websocket.MemoryAlertEvent{
			Level:       event.Level.String(),
			HeapMB:      event.Snapshot.HeapAllocMB,
			AvailableMB: event.Snapshot.AvailableMB,
			Message:     event.Message,
		})
	})

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.HandleWebSocket).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/detect", s.handleDetect).Methods("POST")
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
}

// Start starts the HTTP server, the hub loop and the periodic status feed.
func (s *Server) Start() error {
	s.logger.Info("Starting veil server", zap.Int("port", s.config.Server.Port))
	go s.hub.Run()
	go s.statusLoop()
	return s.server.ListenAndServe()
}

// statusLoop pushes engine health to dashboard clients on a fixed cadence.
func (s *Server) statusLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cacheStats := s.cache.Stats()
			s.hub.Broadcast(websocket.EventTypeSystemStatus, websocket.SystemStatusEvent{
				Status:           "healthy",
				CachedPatterns:   cacheStats.Count,
				CacheHitRatio:    cacheStats.HitRatio,
				ConnectedClients: int(s.hub.Stats().ActiveConnections),
			})
		case <-s.done:
			return
		}
	}
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping veil server")
	close(s.done)
	return s.server.Shutdown(ctx)
}

// UpdatePolicy swaps the default policy, used by config hot reload. Requests
// in flight keep the policy they started with.
func (s *Server) UpdatePolicy(policy *redact.Policy) {
	s.policy.Store(policy)
	s.logger.Info("Redaction policy reloaded")
}
