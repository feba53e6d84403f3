// Package store implements the catalog record store on PostgreSQL with pgx.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const uniqueViolation = "23505"

// Store implements core.CatalogStore.
type Store struct {
	db DBTX
}

var _ core.CatalogStore = (*Store)(nil)

// New creates a Store over db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "SELECT 1")
	return err
}

// FindAllIdentities loads every clave with its id.
func (s *Store) FindAllIdentities(ctx context.Context) ([]core.Identity, error) {
	rows, err := s.db.Query(ctx, `SELECT clave, id FROM productos`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Identity, error) {
		var ident core.Identity
		err := row.Scan(&ident.Clave, &ident.ID)
		return ident, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan identities: %w", err)
	}
	return ids, nil
}

// BulkInsert inserts products in one statement and returns the rows the
// database reports as inserted. With SkipDuplicates, rows whose clave
// already exists are silently dropped.
func (s *Store) BulkInsert(ctx context.Context, products []core.ValidatedProduct, opts core.BulkInsertOptions) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}

	n := len(products)
	claves := make([]string, n)
	codigos := make([]string, n)
	nombres := make([]string, n)
	precios := make([]string, n)
	categorias := make([]string, n)
	activos := make([]bool, n)
	for i, p := range products {
		claves[i] = p.Clave
		codigos[i] = p.Codigo
		nombres[i] = p.Nombre
		precios[i] = p.Precio.String()
		categorias[i] = p.Categoria
		activos[i] = p.Activo
	}

	tag, err := s.db.Exec(ctx, bulkInsertSQL(opts), claves, codigos, nombres, precios, categorias, activos)
	if err != nil {
		return 0, fmt.Errorf("bulk insert %d products: %w", n, mapError(err))
	}
	return tag.RowsAffected(), nil
}

func bulkInsertSQL(opts core.BulkInsertOptions) string {
	q := `
		INSERT INTO productos (clave, codigo, nombre, precio, categoria, activo)
		SELECT t.clave, t.codigo, t.nombre, t.precio::numeric, NULLIF(t.categoria, ''), t.activo
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::bool[])
			AS t(clave, codigo, nombre, precio, categoria, activo)`
	if opts.SkipDuplicates {
		q += `
		ON CONFLICT (clave) DO NOTHING`
	}
	return q
}

// Update applies patch to one product and advances updated_at.
func (s *Store) Update(ctx context.Context, id uuid.UUID, patch core.ProductPatch) error {
	query, args := buildUpdate(id, patch, "")
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrProductNotFound
	}
	return nil
}

// buildUpdate renders an UPDATE for the non-nil fields of patch. Optional
// text columns store NULL for empty strings.
func buildUpdate(id uuid.UUID, patch core.ProductPatch, returning string) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any, nullable bool) {
		args = append(args, value)
		placeholder := fmt.Sprintf("$%d", len(args))
		if nullable {
			placeholder = "NULLIF(" + placeholder + ", '')"
		}
		sets = append(sets, column+" = "+placeholder)
	}

	if patch.Clave != nil {
		add("clave", *patch.Clave, false)
	}
	if patch.Codigo != nil {
		add("codigo", *patch.Codigo, false)
	}
	if patch.Nombre != nil {
		add("nombre", *patch.Nombre, false)
	}
	if patch.Descripcion != nil {
		add("descripcion", *patch.Descripcion, true)
	}
	if patch.Precio != nil {
		args = append(args, patch.Precio.String())
		sets = append(sets, fmt.Sprintf("precio = $%d::numeric", len(args)))
	}
	if patch.Categoria != nil {
		add("categoria", *patch.Categoria, true)
	}
	if patch.Imagen != nil {
		add("imagen", *patch.Imagen, true)
	}
	if patch.Activo != nil {
		add("activo", *patch.Activo, false)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE productos SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if returning != "" {
		query += " RETURNING " + returning
	}
	return query, args
}

// mapError translates driver errors into core sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", core.ErrDuplicateClave, pgErr.Message)
	}
	return err
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
