// Package api provides the HTTP API for the order database: CRUD for
// customers, items and orders plus an on-demand aggregation endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dosa-orders/db/sqlstore"
	"dosa-orders/pkg/platform"
)

// Store is the persistence the server needs; *sqlstore.Store implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateCustomer(ctx context.Context, c sqlstore.Customer) (*sqlstore.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*sqlstore.Customer, error)
	ListCustomers(ctx context.Context) ([]sqlstore.Customer, error)
	UpdateCustomer(ctx context.Context, c sqlstore.Customer) (*sqlstore.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	CreateItem(ctx context.Context, it sqlstore.Item) (*sqlstore.Item, error)
	GetItem(ctx context.Context, id int64) (*sqlstore.Item, error)
	ListItems(ctx context.Context) ([]sqlstore.Item, error)
	UpdateItem(ctx context.Context, it sqlstore.Item) (*sqlstore.Item, error)
	DeleteItem(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, o sqlstore.Order) (*sqlstore.Order, error)
	GetOrder(ctx context.Context, id int64) (*sqlstore.Order, error)
	ListOrders(ctx context.Context) ([]sqlstore.Order, error)
	UpdateOrder(ctx context.Context, o sqlstore.Order) (*sqlstore.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	store      Store
	metrics    *Metrics
	config     *Config
	logger     zerolog.Logger
}

// Config holds server configuration.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
	CORSOrigins     []string
	APIKey          string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxRequestSize:  10 * 1024 * 1024, // 10MB
		CORSOrigins:     []string{"*"},
	}
}

// NewServer creates a new API server.
func NewServer(store Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		store:   store,
		metrics: NewMetrics(),
		config:  config,
		logger:  log.Logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(s.corsMiddleware)
	r.Use(platform.APIKeyMiddleware(s.config.APIKey, "/health", "/ready", "/metrics"))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", s.handleListCustomers)
		r.Post("/", s.handleCreateCustomer)
		r.Get("/{id}", s.handleGetCustomer)
		r.Put("/{id}", s.handleUpdateCustomer)
		r.Delete("/{id}", s.handleDeleteCustomer)
	})
	r.Route("/items", func(r chi.Router) {
		r.Get("/", s.handleListItems)
		r.Post("/", s.handleCreateItem)
		r.Get("/{id}", s.handleGetItem)
		r.Put("/{id}", s.handleUpdateItem)
		r.Delete("/{id}", s.handleDeleteItem)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.handleListOrders)
		r.Post("/", s.handleCreateOrder)
		r.Get("/{id}", s.handleGetOrder)
		r.Put("/{id}", s.handleUpdateOrder)
		r.Delete("/{id}", s.handleDeleteOrder)
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/aggregate", s.handleAggregate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.jsonError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = s.newHTTPServer()
	s.logger.Info().Int("port", s.config.Port).Msg("API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown runs until ctx is done or SIGINT/SIGTERM arrives.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	srv := s.newHTTPServer()
	s.httpServer = srv

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.config.Port).Msg("API server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case <-quit:
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLogger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(r.Context())))

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+platform.APIKeyHeader)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.jsonError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
