package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/michaelbrown/pylearn/internal/api"
	"github.com/michaelbrown/pylearn/internal/executor"
	"github.com/michaelbrown/pylearn/internal/observability"
	"github.com/michaelbrown/pylearn/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the pylearn API.
type Server struct {
	store    storage.Store
	executor *executor.Service
	metrics  *observability.MetricsCollector
	logger   *slog.Logger
	router   chi.Router
	http     *http.Server
}

// New creates a new Server. metrics may be nil, in which case /metrics is
// not mounted.
func New(store storage.Store, exec *executor.Service, metrics *observability.MetricsCollector, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		executor: exec,
		metrics:  metrics,
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(observability.HTTPMiddleware(s.metrics, s.logger))
	r.Use(middleware.Recoverer)

	handlers := map[string]http.HandlerFunc{
		api.ListScripts.Name:  s.handleListScripts,
		api.CreateScript.Name: s.handleCreateScript,
		api.GetScript.Name:    s.handleGetScript,
		api.ListLessons.Name:  s.handleListLessons,
		api.GetLesson.Name:    s.handleGetLesson,
		api.Execute.Name:      s.handleExecute,
	}

	// API routes, mounted from the shared table
	r.Group(func(r chi.Router) {
		r.Use(jsonContentType)
		for _, route := range api.Routes {
			h, ok := handlers[route.Name]
			if !ok {
				panic(fmt.Sprintf("server: no handler for route %q", route.Name))
			}
			r.Method(route.Method, route.Path, h)
		}
	})

	// WebSocket (no JSON content-type)
	r.Get("/api/execute/ws", s.handleExecuteWebSocket)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("pylearn server starting", slog.String("addr", "http://localhost"+addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// executions to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
