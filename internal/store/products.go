package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const productColumns = `id, clave, codigo, nombre, descripcion, precio::text, categoria, imagen, activo, created_at, updated_at`

func scanProduct(row pgx.Row) (*core.Product, error) {
	var (
		p      core.Product
		precio string
	)
	err := row.Scan(
		&p.ID, &p.Clave, &p.Codigo, &p.Nombre, &p.Descripcion,
		&precio, &p.Categoria, &p.Imagen, &p.Activo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrProductNotFound
		}
		return nil, err
	}
	if p.Precio, err = parseDecimal(precio); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct inserts a hand-entered product.
func (s *Store) CreateProduct(ctx context.Context, p core.Product) (*core.Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO productos (clave, codigo, nombre, descripcion, precio, categoria, imagen, activo)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		RETURNING `+productColumns,
		p.Clave, p.Codigo, p.Nombre, p.Descripcion, p.Precio.String(), p.Categoria, p.Imagen, p.Activo,
	)
	created, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", mapError(err))
	}
	return created, nil
}

// GetProduct loads one product.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*core.Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM productos WHERE id = $1`, id)
	return scanProduct(row)
}

// UpdateProduct applies patch and returns the stored product.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, patch core.ProductPatch) (*core.Product, error) {
	query, args := buildUpdate(id, patch, productColumns)
	updated, err := scanProduct(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return updated, nil
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM productos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrProductNotFound
	}
	return nil
}

// ToggleProductActive flips activo in place.
func (s *Store) ToggleProductActive(ctx context.Context, id uuid.UUID) (*core.Product, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE productos SET activo = NOT activo, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, id)
	return scanProduct(row)
}
