package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const importColumns = `id, nombre_archivo, total_filas, productos_creados, productos_actualizados,
	errores_count, errores_detalle, estado, duracion_ms, importado_por, archivo_objeto, created_at`

// CreateImportRun persists an audit record. errores_detalle is stored as
// JSONB and left NULL when there is nothing to itemize.
func (s *Store) CreateImportRun(ctx context.Context, run *core.ImportRun) error {
	var detail []byte
	if len(run.ErroresDetalle) > 0 {
		var err error
		if detail, err = json.Marshal(run.ErroresDetalle); err != nil {
			return fmt.Errorf("encode errores_detalle: %w", err)
		}
	}

	var archivo *string
	if run.ArchivoObjeto != "" {
		archivo = &run.ArchivoObjeto
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO importaciones (`+importColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.NombreArchivo, run.TotalFilas, run.ProductosCreados, run.ProductosActualizados,
		run.ErroresCount, detail, string(run.Estado), run.DuracionMs, run.ImportadoPor, archivo, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

func scanImportRun(row pgx.Row) (*core.ImportRun, error) {
	var (
		run     core.ImportRun
		detail  []byte
		estado  string
		archivo *string
	)
	err := row.Scan(
		&run.ID, &run.NombreArchivo, &run.TotalFilas, &run.ProductosCreados, &run.ProductosActualizados,
		&run.ErroresCount, &detail, &estado, &run.DuracionMs, &run.ImportadoPor, &archivo, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrImportNotFound
		}
		return nil, err
	}

	run.Estado = core.Estado(estado)
	if archivo != nil {
		run.ArchivoObjeto = *archivo
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &run.ErroresDetalle); err != nil {
			return nil, fmt.Errorf("decode errores_detalle: %w", err)
		}
	}
	return &run, nil
}

// ListImportRuns returns a page of runs, newest first, and the total count.
func (s *Store) ListImportRuns(ctx context.Context, limit, offset int) ([]core.ImportRun, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM importaciones`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import runs: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+importColumns+`
		FROM importaciones
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan import run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate import runs: %w", err)
	}
	return runs, total, nil
}

// GetImportRun loads one run.
func (s *Store) GetImportRun(ctx context.Context, id uuid.UUID) (*core.ImportRun, error) {
	return scanImportRun(s.db.QueryRow(ctx, `SELECT `+importColumns+` FROM importaciones WHERE id = $1`, id))
}

// Stats summarizes the catalog for the dashboard. The average covers active
// products only.
func (s *Store) Stats(ctx context.Context) (*core.CatalogStats, error) {
	var (
		stats    core.CatalogStats
		promedio string
	)
	err := s.db.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE activo),
			count(*) FILTER (WHERE NOT activo),
			COALESCE(round(avg(precio) FILTER (WHERE activo), 2), 0)::text
		FROM productos`).Scan(&stats.TotalActivos, &stats.TotalInactivos, &promedio)
	if err != nil {
		return nil, fmt.Errorf("query catalog stats: %w", err)
	}
	if stats.PrecioPromedio, err = parseDecimal(promedio); err != nil {
		return nil, err
	}

	last, err := scanImportRun(s.db.QueryRow(ctx, `
		SELECT `+importColumns+`
		FROM importaciones
		ORDER BY created_at DESC
		LIMIT 1`))
	switch {
	case err == nil:
		stats.UltimaImportacion = last
	case errors.Is(err, core.ErrImportNotFound):
	default:
		return nil, fmt.Errorf("query last import: %w", err)
	}

	return &stats, nil
}
