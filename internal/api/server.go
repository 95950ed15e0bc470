package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homesentry/frigate-bridge/internal/audit"
	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/events"
	"github.com/homesentry/frigate-bridge/internal/health"
	"github.com/homesentry/frigate-bridge/internal/history"
	"github.com/homesentry/frigate-bridge/internal/middleware"
	"github.com/homesentry/frigate-bridge/internal/tokens"
)

// Server is the read-only ops surface: health, metrics, status, recent
// history and a masked config view. It never mutates pipeline state.
type Server struct {
	store    *config.Store
	tokens   *tokens.Manager
	checker  *health.Checker
	history  *history.Store
	queue    *events.Queue
	auditLog *audit.Log
	started  time.Time
}

func NewServer(store *config.Store, tm *tokens.Manager, checker *health.Checker, hist *history.Store, queue *events.Queue, auditLog *audit.Log) *Server {
	return &Server{
		store:    store,
		tokens:   tm,
		checker:  checker,
		history:  hist,
		queue:    queue,
		auditLog: auditLog,
		started:  time.Now(),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewJWTAuth(s.tokens).Middleware)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/history/recent", s.handleRecentHistory)
		r.Get("/api/v1/config", s.handleConfig)
	})
	return r
}
