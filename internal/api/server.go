// Package api provides the HTTP chassis for the skywatch read API.
// It creates a chi router usable with plain net/http and enforces
// cross-cutting concerns before requests reach the handlers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skywatch/internal/alerts"
	"skywatch/internal/config"
	"skywatch/internal/scoring"
	"skywatch/internal/types"
)

// Pinger reports database liveness for the health endpoint. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of the read API, allowing injection during
// testing and distinct wiring per environment.
type Server struct {
	Config   *config.Config
	Weather  types.WeatherSource
	Registry *scoring.Registry
	Tracker  *alerts.Tracker
	DB       Pinger
	Logger   *slog.Logger

	router *chi.Mux
}

// NewServer initializes the server and registers routes. It fail-fasts on
// missing critical dependencies.
func NewServer(
	cfg *config.Config,
	weather types.WeatherSource,
	registry *scoring.Registry,
	tracker *alerts.Tracker,
	db Pinger,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if weather == nil {
		return nil, fmt.Errorf("weather source must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if registry == nil {
		registry = scoring.Default()
	}

	s := &Server{
		Config:   cfg,
		Weather:  weather,
		Registry: registry,
		Tracker:  tracker,
		DB:       db,
		Logger:   logger,
		router:   chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes registers the global middleware chain and all endpoints.
// Middleware order matters: the recoverer is outermost so it catches panics
// from everything below it.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/conditions/score", s.HandleScore)
		r.Get("/conditions/windows", s.HandleWindows)
		r.Get("/profiles", s.HandleProfiles)
		r.Get("/alerts/history", s.HandleAlertHistory)
	})

	s.router.Get("/health", s.HandleHealth)
}
