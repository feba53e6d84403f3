package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogo/internal/spreadsheet"
	"github.com/google/uuid"
)

// PreviewSummary holds the counts an import of the same file would produce.
type PreviewSummary struct {
	TotalFilas      int  `json:"totalFilas"`
	Nuevos          int  `json:"nuevos"`
	Actualizaciones int  `json:"actualizaciones"`
	Invalidas       int  `json:"invalidas"`
	Duplicados      int  `json:"duplicados"`
	Omitidas        int  `json:"omitidas"`
	MaxProductos    int  `json:"maxProductos"`
	ExcedeLimite    bool `json:"excedeLimite"`
}

// UpdateDiff compares a stored product with the row that would overwrite it.
type UpdateDiff struct {
	ProductID uuid.UUID         `json:"productId"`
	Clave     string            `json:"clave"`
	Actual    map[string]string `json:"actual"`
	Nuevo     map[string]string `json:"nuevo"`
	Cambios   []string          `json:"cambios"`
}

// DuplicatePreview lists the rows that share one clave.
type DuplicatePreview struct {
	Clave string `json:"clave"`
	Filas []int  `json:"filas"`
}

// ImportPreview is the read-only analysis of an upload.
type ImportPreview struct {
	Resumen         PreviewSummary     `json:"resumen"`
	Nuevos          []ValidatedProduct `json:"nuevos"`
	Actualizaciones []UpdateDiff       `json:"actualizaciones"`
	Errores         []RowError         `json:"errores"`
	Duplicados      []DuplicatePreview `json:"duplicados"`
	DuracionMs      int64              `json:"duracionMs"`
}

// Sample limits
const (
	maxNewSamples       = 10
	maxUpdateDiffs      = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// PreviewImport runs the import pipeline up to partitioning and reports what
// an import of the same file would do. Nothing is written and no import slot
// is taken.
func (s *Service) PreviewImport(ctx context.Context, upload Upload) (*ImportPreview, error) {
	start := time.Now()

	if err := CheckUpload(upload, s.cfg.MaxFileSize); err != nil {
		return nil, err
	}

	decoded, err := spreadsheet.Decode(upload.Data)
	if err != nil {
		return nil, err
	}
	processed := ValidateRows(decoded.Rows)

	identities, err := s.store.FindAllIdentities(ctx)
	if err != nil {
		return nil, err
	}
	creates, updates := partition(processed.ValidProducts, identities)

	preview := &ImportPreview{
		Resumen: PreviewSummary{
			TotalFilas:      len(decoded.Rows),
			Nuevos:          len(creates),
			Actualizaciones: len(updates),
			Invalidas:       len(processed.Errors),
			Duplicados:      processed.DuplicatesRemoved,
			Omitidas:        decoded.SkippedRows,
			MaxProductos:    s.cfg.MaxProducts,
			ExcedeLimite:    len(processed.ValidProducts) > s.cfg.MaxProducts,
		},
		Nuevos:          make([]ValidatedProduct, 0, min(len(creates), maxNewSamples)),
		Actualizaciones: make([]UpdateDiff, 0, min(len(updates), maxUpdateDiffs)),
		Errores:         processed.Errors[:min(len(processed.Errors), maxErrorSamples)],
		Duplicados:      duplicateClaves(decoded.Rows, processed.Errors, maxDuplicateSamples),
	}
	if preview.Errores == nil {
		preview.Errores = []RowError{}
	}

	for _, i := range creates[:min(len(creates), maxNewSamples)] {
		preview.Nuevos = append(preview.Nuevos, processed.ValidProducts[i])
	}

	for _, u := range updates {
		if len(preview.Actualizaciones) == maxUpdateDiffs {
			break
		}
		current, err := s.store.GetProduct(ctx, u.id)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		preview.Actualizaciones = append(preview.Actualizaciones, diffProduct(*current, processed.ValidProducts[u.index]))
	}

	preview.DuracionMs = time.Since(start).Milliseconds()
	return preview, nil
}

// diffProduct compares the columns an import overwrites.
func diffProduct(current Product, incoming ValidatedProduct) UpdateDiff {
	diff := UpdateDiff{
		ProductID: current.ID,
		Clave:     current.Clave,
		Actual: map[string]string{
			"nombre": current.Nombre,
			"precio": current.Precio.StringFixed(2),
		},
		Nuevo: map[string]string{
			"nombre": incoming.Nombre,
			"precio": incoming.Precio.StringFixed(2),
		},
		Cambios: []string{},
	}

	if current.Nombre != incoming.Nombre {
		diff.Cambios = append(diff.Cambios, "nombre")
	}
	if !current.Precio.Equal(incoming.Precio) {
		diff.Cambios = append(diff.Cambios, "precio")
	}
	if incoming.Categoria != "" {
		var actual string
		if current.Categoria != nil {
			actual = *current.Categoria
		}
		diff.Actual["categoria"] = actual
		diff.Nuevo["categoria"] = incoming.Categoria
		if actual != incoming.Categoria {
			diff.Cambios = append(diff.Cambios, "categoria")
		}
	}
	return diff
}

// duplicateClaves returns up to limit claves that appear on more than one
// valid row, in order of first appearance, with the row numbers users see.
// Rows listed in invalid are ignored, matching what deduplication removes.
func duplicateClaves(rows []spreadsheet.Row, invalid []RowError, limit int) []DuplicatePreview {
	skip := make(map[int]bool, len(invalid))
	for _, e := range invalid {
		skip[e.Row] = true
	}

	positions := make(map[string][]int)
	var order []string
	for i, row := range rows {
		fila := i + rowNumberOffset
		if skip[fila] {
			continue
		}
		clave := strings.TrimSpace(row.Clave)
		if _, seen := positions[clave]; !seen {
			order = append(order, clave)
		}
		positions[clave] = append(positions[clave], fila)
	}

	out := []DuplicatePreview{}
	for _, clave := range order {
		if len(out) == limit {
			break
		}
		if filas := positions[clave]; len(filas) > 1 {
			out = append(out, DuplicatePreview{Clave: clave, Filas: filas})
		}
	}
	return out
}
