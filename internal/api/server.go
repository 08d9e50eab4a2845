package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"StockHound/internal/model"
	"StockHound/internal/notifier"
	"StockHound/internal/screener"
)

// Screener is the part of the orchestrator the HTTP API needs.
type Screener interface {
	Screen(ctx context.Context, budget float64) ([]model.Result, error)
}

// Config holds server configuration.
type Config struct {
	Addr     string
	Log      zerolog.Logger
	Screener Screener
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server serves screening results over HTTP.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	screener Screener
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		screener: cfg.Screener,
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s.setupMiddleware()
	s.setupRoutes(gatherer)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/screen", s.handleScreen)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

type screenResponse struct {
	Budget  float64        `json:"budget"`
	Results []model.Result `json:"results"`
	Failed  []string       `json:"failed,omitempty"`
	Message string         `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("budget")
	budget, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "budget must be a number")
		return
	}

	results, err := s.screener.Screen(r.Context(), budget)
	resp := screenResponse{Budget: budget, Results: results}

	var pe *screener.PassError
	switch {
	case errors.Is(err, screener.ErrInvalidBudget):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &pe):
		for _, e := range pe.Errors {
			resp.Failed = append(resp.Failed, e.Error())
		}
	case err != nil:
		s.log.Error().Err(err).Msg("screening pass failed")
		writeError(w, http.StatusInternalServerError, "screening failed")
		return
	}

	if resp.Results == nil {
		resp.Results = []model.Result{}
	}
	if len(resp.Results) == 0 {
		resp.Message = notifier.NoResultsMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
