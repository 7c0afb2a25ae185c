// Package server provides the HTTP server and routing for Carteira.
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

	"github.com/psouza/carteira/internal/config"
	analysishandlers "github.com/psouza/carteira/internal/modules/analysis/handlers"
	historyhandlers "github.com/psouza/carteira/internal/modules/history/handlers"
	ledgerhandlers "github.com/psouza/carteira/internal/modules/ledger/handlers"
	markethandlers "github.com/psouza/carteira/internal/modules/market/handlers"
)

// Handlers groups the module handlers the router mounts
type Handlers struct {
	Ledger   *ledgerhandlers.Handler
	History  *historyhandlers.Handler
	Market   *markethandlers.Handler
	Analysis *analysishandlers.Handler
}

// Config holds server configuration
type Config struct {
	Port     int
	Log      zerolog.Logger
	Config   *config.Config
	Handlers Handlers
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	cfg      *config.Config
	handlers Handlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		cfg:      cfg.Config,
		handlers: cfg.Handlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handlers.Ledger.HandleListTransactions)
			r.Post("/", s.handlers.Ledger.HandleCreateTransaction)
			r.Delete("/{id}", s.handlers.Ledger.HandleDeleteTransaction)
		})

		r.Get("/positions", s.handlers.Ledger.HandleListPositions)

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/overview", s.handlers.Ledger.HandleGetOverview)
			r.Get("/history", s.handlers.History.HandleGetHistory)
		})

		r.Route("/market", func(r chi.Router) {
			r.Get("/quotes", s.handlers.Market.HandleGetQuotes)
			r.Get("/quotes/{ticker}", s.handlers.Market.HandleGetQuote)
			r.Get("/highlights", s.handlers.Market.HandleGetHighlights)
			r.Get("/historical/{ticker}", s.handlers.Market.HandleGetHistorical)
			r.Get("/dividends/{ticker}", s.handlers.Market.HandleGetDividends)
			r.Get("/search", s.handlers.Market.HandleSearch)
			r.Get("/macro", s.handlers.Market.HandleGetMacro)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/ceiling-price/{ticker}", s.handlers.Analysis.HandleCeilingPrice)
			r.Get("/risk/{ticker}", s.handlers.Analysis.HandleRiskProfile)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
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
