// Package server provides the HTTP server and routing for the portfolio tracker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/di"
	portfoliohandlers "github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/portfolio/handlers"
	universehandlers "github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe/handlers"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Container *di.Container            // DI container with all services
	Jobs      map[string]scheduler.Job // Jobs that can be triggered via API
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			[]*database.DB{cfg.Container.MarketDB, cfg.Container.ClientDataDB},
			cfg.Container.Scheduler,
			cfg.Jobs,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // refresh-all and backfill run inline
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.systemHandlers.HandleHealth)
	s.router.Handle("/metrics", c.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
		})

		universeHandler := universehandlers.NewHandler(
			c.SyncService,
			c.RegistrationService,
			c.InstrumentRepo,
			c.HistoryDB,
			c.FMPClient,
			s.log,
		)
		universeHandler.RegisterRoutes(r)

		portfolioHandler := portfoliohandlers.NewHandler(c.PortfolioService, s.log)
		portfolioHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
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
