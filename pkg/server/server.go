// Package server exposes the Reddit login flow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Suhaibinator/redditauth/pkg/login"
	"github.com/Suhaibinator/redditauth/pkg/session"
	"github.com/Suhaibinator/redditauth/pkg/settings"
	"github.com/Suhaibinator/redditauth/pkg/users"
)

// Routes served by the login flow.
const (
	PathLogin          = "/user/login"
	PathRedditLogin    = "/user/login/reddit"
	PathRedditCallback = "/user/login/reddit/callback"
	PathAdminSettings  = "/admin/config/social-auth/reddit"
)

// Accounts is the user manager as seen by the HTTP layer.
type Accounts interface {
	AuthenticateUser(ctx context.Context, id users.Identity) (*users.Account, error)
	Account(ctx context.Context, id string) (*users.Account, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Coordinator *login.Coordinator
	Accounts    Accounts
	Settings    settings.Store
	Sessions    session.Store
	Cookie      session.CookieOptions
	Gatherer    prometheus.Gatherer // nil serves the default registry
	Health      map[string]HealthCheck
	AdminToken  string // empty disables the settings endpoints
	RedirectURL string
}

// Server holds the HTTP handlers.
type Server struct {
	opts   Options
	logger *zap.Logger
}

// New returns a Server.
func New(logger *zap.Logger, opts Options) (*Server, error) {
	if opts.Coordinator == nil || opts.Accounts == nil || opts.Settings == nil || opts.Sessions == nil {
		return nil, errors.New("server: coordinator, accounts, settings and sessions are required")
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{opts: opts, logger: logger.Named("http")}, nil
}

// Routes wires all routes and middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(s.opts.Sessions, s.opts.Cookie))
		r.Get("/", s.handleHome)
		r.Get(PathLogin, s.handleLoginPage)
		r.Get(PathRedditLogin, s.handleRedditLogin)
		r.Get(PathRedditCallback, s.handleRedditCallback)
	})

	r.Route(PathAdminSettings, func(r chi.Router) {
		r.Use(requireAdmin(s.opts.AdminToken))
		r.Get("/", s.handleGetSettings)
		r.Post("/", s.handleSaveSettings)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, check := range s.opts.Health {
		if err := check(r.Context()); err != nil {
			LogEnricher(r.Context(), s.logger).Warn("Health check failed", zap.String("check", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
