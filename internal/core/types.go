package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estado is the outcome recorded on an ImportRun.
type Estado string

const (
	EstadoExitoso Estado = "EXITOSO" // zero errors
	EstadoParcial Estado = "PARCIAL" // errors plus at least one success
	EstadoFallido Estado = "FALLIDO" // fatal error or every row failed
)

// ValidatedProduct is one canonical row entering reconciliation.
// Codigo mirrors Clave for spreadsheet imports; Nombre comes from the
// workbook's CODIGO column.
type ValidatedProduct struct {
	Clave     string          `json:"clave"`
	Codigo    string          `json:"codigo"`
	Nombre    string          `json:"nombre"`
	Precio    decimal.Decimal `json:"precio"`
	Categoria string          `json:"categoria,omitempty"`
	Activo    bool            `json:"activo"`
}

// Product is a persisted catalog entry.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Clave       string          `json:"clave"`
	Codigo      string          `json:"codigo"`
	Nombre      string          `json:"nombre"`
	Descripcion *string         `json:"descripcion,omitempty"`
	Precio      decimal.Decimal `json:"precio"`
	Categoria   *string         `json:"categoria,omitempty"`
	Imagen      *string         `json:"imagen,omitempty"`
	Activo      bool            `json:"activo"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Identity resolves a business key to the store's own id.
type Identity struct {
	Clave string
	ID    uuid.UUID
}

// ProductPatch lists the fields an update overwrites. Nil fields are left
// untouched; the store always advances updated_at.
type ProductPatch struct {
	Clave       *string
	Codigo      *string
	Nombre      *string
	Descripcion *string
	Precio      *decimal.Decimal
	Categoria   *string
	Imagen      *string
	Activo      *bool
}

// IsEmpty reports whether the patch changes no column.
func (p ProductPatch) IsEmpty() bool {
	return p.Clave == nil && p.Codigo == nil && p.Nombre == nil && p.Descripcion == nil &&
		p.Precio == nil && p.Categoria == nil && p.Imagen == nil && p.Activo == nil
}

// BulkInsertOptions controls BulkInsert conflict handling.
type BulkInsertOptions struct {
	// SkipDuplicates drops rows whose clave already exists instead of failing.
	SkipDuplicates bool
}

// ImportError is one itemized reconciliation failure. Index is the product's
// position in the validated batch.
type ImportError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// RowError is one validation failure. Row is the workbook row number as a
// user would count it (data index + 2).
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportRun is the immutable audit record of one import attempt.
type ImportRun struct {
	ID                    uuid.UUID     `json:"id"`
	NombreArchivo         string        `json:"nombreArchivo"`
	TotalFilas            int           `json:"totalFilas"`
	ProductosCreados      int           `json:"productosCreados"`
	ProductosActualizados int           `json:"productosActualizados"`
	ErroresCount          int           `json:"erroresCount"`
	ErroresDetalle        []ImportError `json:"erroresDetalle,omitempty"`
	Estado                Estado        `json:"estado"`
	DuracionMs            int64         `json:"duracionMs"`
	ImportadoPor          string        `json:"importadoPor"`
	ArchivoObjeto         string        `json:"archivoObjeto,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
}

// CatalogStats is the admin dashboard summary.
type CatalogStats struct {
	TotalActivos      int             `json:"totalActivos"`
	TotalInactivos    int             `json:"totalInactivos"`
	PrecioPromedio    decimal.Decimal `json:"precioPromedio"`
	UltimaImportacion *ImportRun      `json:"ultimaImportacion"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total        int `json:"total"`
	Pagina       int `json:"pagina"`
	PorPagina    int `json:"porPagina"`
	TotalPaginas int `json:"totalPaginas"`
}

// NewPagination computes the page count for total rows.
func NewPagination(total, page, perPage int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Total: total, Pagina: page, PorPagina: perPage, TotalPaginas: pages}
}

// Store is the persistence boundary used by the reconciliation engine.
type Store interface {
	// FindAllIdentities returns the clave and id of every catalog product.
	FindAllIdentities(ctx context.Context) ([]Identity, error)

	// BulkInsert creates products and returns how many rows were inserted.
	BulkInsert(ctx context.Context, products []ValidatedProduct, opts BulkInsertOptions) (int64, error)

	// Update applies patch to the product with the given store id.
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) error

	// CreateImportRun persists an audit record.
	CreateImportRun(ctx context.Context, run *ImportRun) error
}

// CatalogStore extends Store with admin queries and manual edits.
type CatalogStore interface {
	Store

	CreateProduct(ctx context.Context, p Product) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ToggleProductActive(ctx context.Context, id uuid.UUID) (*Product, error)

	ListImportRuns(ctx context.Context, limit, offset int) ([]ImportRun, int, error)
	GetImportRun(ctx context.Context, id uuid.UUID) (*ImportRun, error)

	Stats(ctx context.Context) (*CatalogStats, error)
	Ping(ctx context.Context) error
}
