// Package server provides the HTTP server and routing for Intrinsic.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dkaratzas/intrinsic/internal/config"
	"github.com/dkaratzas/intrinsic/internal/database"
	"github.com/dkaratzas/intrinsic/internal/events"
	fundamentalshandlers "github.com/dkaratzas/intrinsic/internal/modules/fundamentals/handlers"
	scenarioshandlers "github.com/dkaratzas/intrinsic/internal/modules/scenarios/handlers"
	valuationhandlers "github.com/dkaratzas/intrinsic/internal/modules/valuation/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config carries everything the server needs to assemble its routes.
type Config struct {
	Config   *config.Config
	Log      zerolog.Logger
	DevMode  bool
	EventBus *events.Bus

	ResearchDB *database.DB
	CacheDB    *database.DB

	ValuationHandlers    *valuationhandlers.Handler
	FundamentalsHandlers *fundamentalshandlers.Handler
	ScenariosHandlers    *scenarioshandlers.Handler
}

// Server is the HTTP server for the valuation dashboard API.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	systemHandlers *SystemHandlers
	wsHub          *WebSocketHub
}

// New creates a new server with all routes registered.
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.ResearchDB, cfg.CacheDB)
	wsHub := NewWebSocketHub(cfg.EventBus, cfg.Log)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		systemHandlers: systemHandlers,
		wsHub:          wsHub,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	// Health check
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// WebSocket push for valuation and data refresh events.
		// Registered outside the timeout middleware scope below.
		r.Get("/ws", s.wsHub.HandleConnection)

		// Request-scoped endpoints get the standard timeout
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			cfg.ValuationHandlers.RegisterRoutes(r)
			cfg.FundamentalsHandlers.RegisterRoutes(r)
			cfg.ScenariosHandlers.RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/health", s.systemHandlers.HandleHealth)
				r.Get("/info", s.systemHandlers.HandleInfo)
			})
		})
	})
}

// handleHealth is the bare liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.wsHub.Close()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
