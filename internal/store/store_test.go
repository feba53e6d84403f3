package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestBuildUpdate(t *testing.T) {
	id := uuid.New()

	t.Run("import patch", func(t *testing.T) {
		precio := decimal.RequireFromString("12.50")
		query, args := buildUpdate(id, core.ProductPatch{
			Nombre: ptr("Aspirina"),
			Precio: &precio,
		}, "")

		assert.Equal(t, "UPDATE productos SET nombre = $1, precio = $2::numeric, updated_at = now() WHERE id = $3", query)
		assert.Equal(t, []any{"Aspirina", "12.5", id}, args)
	})

	t.Run("optional text uses NULLIF", func(t *testing.T) {
		query, args := buildUpdate(id, core.ProductPatch{
			Imagen:    ptr(""),
			Categoria: ptr("Analgésicos"),
			Activo:    ptr(false),
		}, "id")

		assert.Equal(t,
			"UPDATE productos SET categoria = NULLIF($1, ''), imagen = NULLIF($2, ''), activo = $3, updated_at = now() WHERE id = $4 RETURNING id",
			query)
		assert.Equal(t, []any{"Analgésicos", "", false, id}, args)
	})

	t.Run("empty patch still touches updated_at", func(t *testing.T) {
		query, args := buildUpdate(id, core.ProductPatch{}, "")
		assert.Equal(t, "UPDATE productos SET updated_at = now() WHERE id = $1", query)
		assert.Equal(t, []any{id}, args)
	})
}

func TestBulkInsertSQL(t *testing.T) {
	assert.Contains(t, bulkInsertSQL(core.BulkInsertOptions{SkipDuplicates: true}), "ON CONFLICT (clave) DO NOTHING")
	assert.NotContains(t, bulkInsertSQL(core.BulkInsertOptions{}), "ON CONFLICT")
}

func TestMapError(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	assert.ErrorIs(t, err, core.ErrDuplicateClave)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

// ============================================================================
// PostgreSQL integration (CATALOGO_TEST_DATABASE_URL)
// ============================================================================

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("CATALOGO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CATALOGO_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(pool))
	_, err = pool.Exec(ctx, `TRUNCATE productos, importaciones`)
	require.NoError(t, err)
	return pool
}

func validated(clave, nombre, precio string) core.ValidatedProduct {
	return core.ValidatedProduct{
		Clave:  clave,
		Codigo: clave,
		Nombre: nombre,
		Precio: decimal.RequireFromString(precio),
		Activo: true,
	}
}

func TestStore_ReconcileRoundTrip(t *testing.T) {
	s := New(testPool(t))
	ctx := context.Background()

	batch := []core.ValidatedProduct{
		validated("A1", "Aspirina", "10.00"),
		validated("B2", "Paracetamol", "1250.00"),
	}

	n, err := s.BulkInsert(ctx, batch, core.BulkInsertOptions{SkipDuplicates: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.BulkInsert(ctx, batch, core.BulkInsertOptions{SkipDuplicates: true})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "existing claves are skipped")

	_, err = s.BulkInsert(ctx, batch[:1], core.BulkInsertOptions{})
	assert.ErrorIs(t, err, core.ErrDuplicateClave)

	ids, err := s.FindAllIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	var a1 uuid.UUID
	for _, ident := range ids {
		if ident.Clave == "A1" {
			a1 = ident.ID
		}
	}
	require.NotEqual(t, uuid.Nil, a1)

	before, err := s.GetProduct(ctx, a1)
	require.NoError(t, err)

	_, err = s.UpdateProduct(ctx, a1, core.ProductPatch{Activo: ptr(false), Imagen: ptr("https://cdn.example.com/a1.png")})
	require.NoError(t, err)

	precio := decimal.RequireFromString("12.00")
	require.NoError(t, s.Update(ctx, a1, core.ProductPatch{Nombre: ptr("Aspirina 500mg"), Precio: &precio}))

	after, err := s.GetProduct(ctx, a1)
	require.NoError(t, err)
	assert.Equal(t, "Aspirina 500mg", after.Nombre)
	assert.True(t, after.Precio.Equal(precio))
	assert.False(t, after.Activo, "curated activo survives an import update")
	require.NotNil(t, after.Imagen)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	err = s.Update(ctx, uuid.New(), core.ProductPatch{Nombre: ptr("x")})
	assert.ErrorIs(t, err, core.ErrProductNotFound)
}

func TestStore_ImportRuns(t *testing.T) {
	s := New(testPool(t))
	ctx := context.Background()

	older := core.ImportRun{
		ID:            uuid.New(),
		NombreArchivo: "enero.xlsx",
		TotalFilas:    3,
		Estado:        core.EstadoExitoso,
		ImportadoPor:  "admin@farmacia.com",
		CreatedAt:     time.Now().Add(-time.Hour),
	}
	newer := core.ImportRun{
		ID:                    uuid.New(),
		NombreArchivo:         "febrero.xlsx",
		TotalFilas:            3,
		ProductosActualizados: 2,
		ErroresCount:          1,
		ErroresDetalle:        []core.ImportError{{Index: 2, Error: "update failed for C3: timeout"}},
		Estado:                core.EstadoParcial,
		ImportadoPor:          "admin@farmacia.com",
		ArchivoObjeto:         "importaciones/2026/02/01/x-febrero.xlsx",
		CreatedAt:             time.Now(),
	}
	require.NoError(t, s.CreateImportRun(ctx, &older))
	require.NoError(t, s.CreateImportRun(ctx, &newer))

	runs, total, err := s.ListImportRuns(ctx, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, newer.ErroresDetalle, runs[0].ErroresDetalle)
	assert.Equal(t, newer.ArchivoObjeto, runs[0].ArchivoObjeto)
	assert.Nil(t, runs[1].ErroresDetalle)

	_, err = s.GetImportRun(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrImportNotFound)

	_, err = s.BulkInsert(ctx, []core.ValidatedProduct{
		validated("A1", "a", "10"),
		validated("B2", "b", "20"),
	}, core.BulkInsertOptions{SkipDuplicates: true})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalActivos)
	assert.True(t, stats.PrecioPromedio.Equal(decimal.NewFromInt(15)))
	require.NotNil(t, stats.UltimaImportacion)
	assert.Equal(t, newer.ID, stats.UltimaImportacion.ID)
}

func TestStore_ManualProducts(t *testing.T) {
	s := New(testPool(t))
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, core.Product{
		Clave:  "X9",
		Codigo: "X9",
		Nombre: "Vitamina C",
		Precio: decimal.RequireFromString("45.5"),
		Activo: true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Precio.String(), "45.5"))

	_, err = s.CreateProduct(ctx, core.Product{Clave: "X9", Precio: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, core.ErrDuplicateClave)

	toggled, err := s.ToggleProductActive(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Activo)

	require.NoError(t, s.DeleteProduct(ctx, created.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, created.ID), core.ErrProductNotFound)
	_, err = s.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrProductNotFound)
}
