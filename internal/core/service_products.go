package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalogo/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxNombreLen      = 255
	maxDescripcionLen = 1000
	maxCategoriaLen   = 100
	maxImagenLen      = 1000

	msgInvalidProduct = "Datos de producto inválidos"
	msgNoChanges      = "No hay cambios para guardar"
)

// ProductInput is the body of a manual create.
type ProductInput struct {
	Clave       string          `json:"clave"`
	Codigo      string          `json:"codigo"`
	Nombre      string          `json:"nombre"`
	Descripcion string          `json:"descripcion"`
	Precio      decimal.Decimal `json:"precio"`
	Categoria   string          `json:"categoria"`
	Imagen      string          `json:"imagen"`
	Activo      *bool           `json:"activo"`
}

// ProductUpdate is the body of a manual edit. Absent fields are unchanged;
// an empty optional text clears the column.
type ProductUpdate struct {
	Clave       *string          `json:"clave"`
	Codigo      *string          `json:"codigo"`
	Nombre      *string          `json:"nombre"`
	Descripcion *string          `json:"descripcion"`
	Precio      *decimal.Decimal `json:"precio"`
	Categoria   *string          `json:"categoria"`
	Imagen      *string          `json:"imagen"`
	Activo      *bool            `json:"activo"`
}

// fieldChecker accumulates field problems in declaration order.
type fieldChecker struct {
	problems []FieldError
}

func (c *fieldChecker) add(field, msg string) {
	c.problems = append(c.problems, FieldError{Field: field, Error: msg})
}

func (c *fieldChecker) maxLen(field, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		c.add(field, fmt.Sprintf("%s no puede exceder %d caracteres", field, limit))
	}
}

func (c *fieldChecker) clave(value string) {
	if strings.TrimSpace(value) == "" {
		c.add("clave", "Clave es requerida")
		return
	}
	c.maxLen("clave", strings.TrimSpace(value), maxClaveLen)
}

func (c *fieldChecker) precio(value decimal.Decimal) {
	if _, err := storablePrecio(value); err != nil {
		c.add("precio", err.Error())
	}
}

func (c *fieldChecker) imagen(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	c.maxLen("imagen", value, maxImagenLen)
	u, err := url.ParseRequestURI(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.add("imagen", "Debe ser una URL válida")
	}
}

func (c *fieldChecker) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationFailedError{Message: msgInvalidProduct, Fields: c.problems}
}

func validateProductInput(in ProductInput) error {
	var c fieldChecker
	c.clave(in.Clave)
	c.maxLen("codigo", strings.TrimSpace(in.Codigo), maxCodigoLen)
	c.maxLen("nombre", strings.TrimSpace(in.Nombre), maxNombreLen)
	c.maxLen("descripcion", strings.TrimSpace(in.Descripcion), maxDescripcionLen)
	c.precio(in.Precio)
	c.maxLen("categoria", strings.TrimSpace(in.Categoria), maxCategoriaLen)
	c.imagen(in.Imagen)
	return c.err()
}

func validateProductUpdate(in ProductUpdate) error {
	var c fieldChecker
	if in.Clave != nil {
		c.clave(*in.Clave)
	}
	if in.Codigo != nil {
		c.maxLen("codigo", strings.TrimSpace(*in.Codigo), maxCodigoLen)
	}
	if in.Nombre != nil {
		c.maxLen("nombre", strings.TrimSpace(*in.Nombre), maxNombreLen)
	}
	if in.Descripcion != nil {
		c.maxLen("descripcion", strings.TrimSpace(*in.Descripcion), maxDescripcionLen)
	}
	if in.Precio != nil {
		c.precio(*in.Precio)
	}
	if in.Categoria != nil {
		c.maxLen("categoria", strings.TrimSpace(*in.Categoria), maxCategoriaLen)
	}
	if in.Imagen != nil {
		c.imagen(*in.Imagen)
	}
	return c.err()
}

// CreateProduct validates and stores a hand-entered product. Codigo
// defaults to clave, as it does for imported rows.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	p := Product{
		Clave:       strings.TrimSpace(in.Clave),
		Codigo:      strings.TrimSpace(in.Codigo),
		Nombre:      strings.TrimSpace(in.Nombre),
		Descripcion: optionalText(in.Descripcion),
		Precio:      in.Precio,
		Categoria:   optionalText(in.Categoria),
		Imagen:      optionalText(in.Imagen),
		Activo:      true,
	}
	if p.Codigo == "" {
		p.Codigo = p.Clave
	}
	if in.Activo != nil {
		p.Activo = *in.Activo
	}

	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product %s: %w", p.Clave, err)
	}

	logging.FromContext(ctx).Info("product created", "product_id", created.ID, "clave", created.Clave)
	s.invalidate(ctx, created.Clave)
	return created, nil
}

// GetProduct returns one product by store id.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// UpdateProduct applies a manual edit. Unlike imports, any field may change.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductUpdate) (*Product, error) {
	if err := validateProductUpdate(in); err != nil {
		return nil, err
	}

	patch := ProductPatch{
		Clave:       trimmed(in.Clave),
		Codigo:      trimmed(in.Codigo),
		Nombre:      trimmed(in.Nombre),
		Descripcion: trimmed(in.Descripcion),
		Precio:      in.Precio,
		Categoria:   trimmed(in.Categoria),
		Imagen:      trimmed(in.Imagen),
		Activo:      in.Activo,
	}
	if patch.IsEmpty() {
		return nil, &ValidationFailedError{Message: msgNoChanges}
	}

	var oldClave string
	if patch.Clave != nil {
		current, err := s.store.GetProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("update product %s: %w", id, err)
		}
		oldClave = current.Clave
	}

	updated, err := s.store.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("product updated", "product_id", id, "clave", updated.Clave)
	s.invalidate(ctx, oldClave, updated.Clave)
	return updated, nil
}

// DeleteProduct removes a product permanently.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("product deleted", "product_id", id, "clave", current.Clave)
	s.invalidate(ctx, current.Clave)
	return nil
}

// ToggleProduct flips activo and returns the updated product.
func (s *Service) ToggleProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.store.ToggleProductActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("toggle product %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("product toggled", "product_id", id, "activo", p.Activo)
	s.invalidate(ctx, p.Clave)
	return p, nil
}

func (s *Service) invalidate(ctx context.Context, claves ...string) {
	keys := make([]string, 0, len(claves))
	for _, c := range claves {
		if c != "" {
			keys = append(keys, c)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.InvalidateProducts(ctx, keys); err != nil {
		logging.FromContext(ctx).Warn("cache invalidation failed", "claves", keys, "error", err)
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
