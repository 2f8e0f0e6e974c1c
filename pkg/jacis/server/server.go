// Package server is the admin HTTP surface: a chi router exposing
// container/store introspection, a Prometheus metrics endpoint, a
// websocket commit feed, and an optional GraphQL introspection endpoint,
// grounded on the teacher's pkg/server.Server.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mnohosten/jacis-go/pkg/jacis"
	"github.com/mnohosten/jacis-go/pkg/jacis/authn"
	"github.com/mnohosten/jacis-go/pkg/jacis/metrics"
	"github.com/mnohosten/jacis-go/pkg/jacis/server/graphql"
	"github.com/mnohosten/jacis-go/pkg/jacis/server/handlers"
)

// Server is the admin HTTP surface wrapping one Container.
type Server struct {
	config    *Config
	container *jacis.Container
	authStore *authn.Store
	collector *metrics.Collector
	promExp   *metrics.PrometheusExporter

	router    *chi.Mux
	httpSrv   *http.Server
	feed      *handlers.CommitFeedManager
	startTime time.Time
}

// New builds a Server over container. authStore gates /_stores only; the
// health, metrics, commit-feed and GraphQL routes are never authenticated,
// and a nil authStore leaves /_stores open too. collector may be nil, in
// which case the
// /_metrics endpoint and the GraphQL "engine" field report nothing.
func New(config *Config, container *jacis.Container, authStore *authn.Store, collector *metrics.Collector) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:    config,
		container: container,
		authStore: authStore,
		collector: collector,
		router:    chi.NewRouter(),
		feed:      handlers.NewCommitFeedManager(),
		startTime: time.Now(),
	}
	if collector != nil {
		s.promExp = metrics.NewPrometheusExporter(collector, config.Namespace)
	}
	container.RegisterTransactionListener(handlers.NewCommitFeedListener(s.feed))

	s.setupMiddleware()
	s.setupRoutes()
	if config.EnableGraphQL {
		if err := s.setupGraphQLRoutes(); err != nil {
			return nil, err
		}
	}

	s.httpSrv = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/_health", s.jsonContentType(s.handleHealth))
	s.router.Get("/_stores", s.jsonContentType(s.requireAuth(authn.RoleReadOnly, s.handleListStores)))
	s.router.Get("/_metrics", s.handlePrometheusMetrics)
	s.router.Get("/_ws/commits", s.feed.HandleCommitFeed)
}

func (s *Server) setupGraphQLRoutes() error {
	h, err := graphql.NewHandler(s.container, s.collector)
	if err != nil {
		return fmt.Errorf("jacis/server: setup graphql: %w", err)
	}
	s.router.Post("/graphql", h.ServeHTTP)
	s.router.Get("/graphiql", graphql.GraphiQLHandler())
	return nil
}

// --- handlers ------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.container.StoreStats())
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	if s.promExp == nil {
		http.Error(w, "metrics collector not configured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.promExp.WriteMetrics(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// --- middleware ------------------------------------------------------------

func (s *Server) jsonContentType(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

// requireAuth gates next behind HTTP Basic auth checked against authStore,
// requiring at least minRole. A nil authStore disables the check entirely
// (suitable for local/dev use).
func (s *Server) requireAuth(minRole authn.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authStore == nil {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="jacis admin"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		role, err := s.authStore.Authenticate(user, pass)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="jacis admin"`)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if minRole == authn.RoleAdmin && role != authn.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// --- lifecycle ------------------------------------------------------------

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server and closes all commit-feed
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.feed.Close()
	return s.httpSrv.Shutdown(ctx)
}
