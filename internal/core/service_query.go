package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	DefaultHistoryPageSize = 20
	MaxHistoryPageSize     = 100
)

// ImportHistory is one page of import runs, newest first.
type ImportHistory struct {
	Importaciones []ImportRun `json:"importaciones"`
	Paginacion    Pagination  `json:"paginacion"`
}

// ListImports returns a page of import runs. Out of range arguments are
// clamped.
func (s *Service) ListImports(ctx context.Context, page, perPage int) (*ImportHistory, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultHistoryPageSize
	}
	perPage = min(perPage, MaxHistoryPageSize)

	runs, total, err := s.store.ListImportRuns(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	if runs == nil {
		runs = []ImportRun{}
	}

	return &ImportHistory{
		Importaciones: runs,
		Paginacion:    NewPagination(total, page, perPage),
	}, nil
}

// GetImport returns one import run.
func (s *Service) GetImport(ctx context.Context, id uuid.UUID) (*ImportRun, error) {
	run, err := s.store.GetImportRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get import run %s: %w", id, err)
	}
	return run, nil
}

// Stats returns the dashboard summary and refreshes the catalog gauges.
func (s *Service) Stats(ctx context.Context) (*CatalogStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog stats: %w", err)
	}
	s.observer.SetCatalogCounts(stats.TotalActivos, stats.TotalInactivos)
	return stats, nil
}
