// Package web provides the JSON HTTP API for catalog imports, the import
// history and manual product edits.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/catalogo/internal/config"
	"github.com/JonMunkholm/catalogo/internal/core"
	mw "github.com/JonMunkholm/catalogo/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Catalog is the service surface the handlers use. *core.Service
// implements it.
type Catalog interface {
	ImportCatalog(ctx context.Context, upload core.Upload, importedBy string) (*core.ImportResponse, error)
	PreviewImport(ctx context.Context, upload core.Upload) (*core.ImportPreview, error)
	ImportStatus() core.ImportLimiterStatus
	ListImports(ctx context.Context, page, perPage int) (*core.ImportHistory, error)
	GetImport(ctx context.Context, id uuid.UUID) (*core.ImportRun, error)
	Stats(ctx context.Context) (*core.CatalogStats, error)

	CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*core.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in core.ProductUpdate) (*core.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ToggleProduct(ctx context.Context, id uuid.UUID) (*core.Product, error)

	Ping(ctx context.Context) error
}

var _ Catalog = (*core.Service)(nil)

// Server is the HTTP server for the catalog API.
type Server struct {
	service Catalog
	cfg     *config.Config
	metrics http.Handler
	router  *chi.Mux
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at cfg.Metrics.Path, outside API key auth.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a new Server instance.
func NewServer(service Catalog, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Imports run under the service's own timeout.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute).middleware)
			}
			r.Post("/importar", s.handleImport)
			r.Post("/importar/vista-previa", s.handlePreviewImport)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/importar/estado", s.handleImportStatus)
			r.Get("/importaciones", s.handleListImports)
			r.Get("/importaciones/{id}", s.handleGetImport)
			r.Get("/estadisticas", s.handleStats)

			r.Post("/productos", s.handleCreateProduct)
			r.Get("/productos/{id}", s.handleGetProduct)
			r.Put("/productos/{id}", s.handleUpdateProduct)
			r.Delete("/productos/{id}", s.handleDeleteProduct)
			r.Post("/productos/{id}/toggle", s.handleToggleProduct)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, errRouteNotFound)
	})
}

// Start begins listening for HTTP requests on cfg.Server.Addr().
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
