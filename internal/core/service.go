package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultImportTimeout bounds one import pipeline, limiter wait excluded.
const DefaultImportTimeout = 10 * time.Minute

// Archiver keeps a copy of every accepted upload and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, id uuid.UUID, fileName, contentType string, data []byte) (string, error)
}

// CacheInvalidator drops cached storefront entries for changed products.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, claves []string) error
}

// EventPublisher announces finished import runs.
type EventPublisher interface {
	PublishImportRun(ctx context.Context, run ImportRun) error
}

// Observer receives import and catalog measurements.
type Observer interface {
	ObserveImport(run ImportRun)
	ObserveRejection(reason string)
	ObserveRows(kind string, n int)
	SetCatalogCounts(activos, inactivos int)
}

// ServiceConfig holds the tunables the service needs from configuration.
type ServiceConfig struct {
	Reconciler    ReconcilerConfig
	MaxFileSize   int64
	MaxProducts   int
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
}

// DefaultMaxProducts caps the unique products in one import.
const DefaultMaxProducts = 5000

// Service is the entry point for imports, manual product edits and the
// admin queries. Optional collaborators default to no-ops.
type Service struct {
	store      CatalogStore
	reconciler *Reconciler
	limiter    *ImportLimiter
	cfg        ServiceConfig

	archiver Archiver
	cache    CacheInvalidator
	events   EventPublisher
	observer Observer
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithArchiver stores uploads before they are reconciled.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithCache invalidates storefront cache entries after changes.
func WithCache(c CacheInvalidator) Option {
	return func(s *Service) { s.cache = c }
}

// WithEvents publishes every recorded import run.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithObserver records metrics.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service over store.
func NewService(store CatalogStore, cfg ServiceConfig, opts ...Option) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxProducts <= 0 {
		cfg.MaxProducts = DefaultMaxProducts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultImportTimeout
	}

	s := &Service{
		store:      store,
		reconciler: NewReconciler(store, cfg.Reconciler),
		limiter:    NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:        cfg,
		archiver:   nopArchiver{},
		cache:      nopCache{},
		events:     nopEvents{},
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportStatus reports limiter occupancy.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no import is running or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type nopArchiver struct{}

func (nopArchiver) Archive(context.Context, uuid.UUID, string, string, []byte) (string, error) {
	return "", nil
}

type nopCache struct{}

func (nopCache) InvalidateProducts(context.Context, []string) error { return nil }

type nopEvents struct{}

func (nopEvents) PublishImportRun(context.Context, ImportRun) error { return nil }

type nopObserver struct{}

func (nopObserver) ObserveImport(ImportRun)   {}
func (nopObserver) ObserveRejection(string)   {}
func (nopObserver) ObserveRows(string, int)   {}
func (nopObserver) SetCatalogCounts(int, int) {}
