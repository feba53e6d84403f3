package core

// validation.go checks decoded spreadsheet rows and collapses duplicate claves.
//
// Validation never aborts the batch: each row either becomes a
// ValidatedProduct or contributes one RowError listing every rule it broke.
// Deduplication runs afterwards on the valid rows only; the last occurrence
// of a clave wins because later rows carry the more recent price.

import (
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalogo/internal/spreadsheet"
)

const (
	maxClaveLen  = 50
	maxCodigoLen = 255

	// rowNumberOffset converts a data row index into the number shown to users:
	// one for 1-based counting and one for the header row.
	rowNumberOffset = 2
)

// Validation messages shown to admins.
const (
	msgClaveRequerida  = "CLAVE es requerida"
	msgClaveLarga      = "CLAVE no puede exceder 50 caracteres"
	msgCodigoRequerido = "CODIGO es requerido"
	msgCodigoLargo     = "CODIGO no puede exceder 255 caracteres"
)

// ProcessResult is the validator output.
type ProcessResult struct {
	ValidProducts     []ValidatedProduct
	Errors            []RowError
	DuplicatesRemoved int
}

// ValidateRows validates every row, maps it to the catalog shape and removes
// duplicate claves. The returned products keep the order in which each
// clave first appeared.
func ValidateRows(rows []spreadsheet.Row) ProcessResult {
	var result ProcessResult
	validated := make([]ValidatedProduct, 0, len(rows))

	for i, row := range rows {
		product, problems := validateRow(row)
		if len(problems) > 0 {
			result.Errors = append(result.Errors, RowError{
				Row:   i + rowNumberOffset,
				Error: strings.Join(problems, ", "),
			})
			continue
		}
		validated = append(validated, product)
	}

	result.ValidProducts = dedupeByClave(validated)
	result.DuplicatesRemoved = len(validated) - len(result.ValidProducts)
	return result
}

// validateRow returns the mapped product or the list of broken rules.
func validateRow(row spreadsheet.Row) (ValidatedProduct, []string) {
	var problems []string

	clave := strings.TrimSpace(row.Clave)
	switch n := utf8.RuneCountInString(clave); {
	case n == 0:
		problems = append(problems, msgClaveRequerida)
	case n > maxClaveLen:
		problems = append(problems, msgClaveLarga)
	}

	codigo := strings.TrimSpace(row.Codigo)
	switch n := utf8.RuneCountInString(codigo); {
	case n == 0:
		problems = append(problems, msgCodigoRequerido)
	case n > maxCodigoLen:
		problems = append(problems, msgCodigoLargo)
	}

	precio, err := ParsePrecio(row.Precio)
	if err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return ValidatedProduct{}, problems
	}

	// The workbook's CODIGO column holds the display name; the catalog
	// codigo mirrors clave for this feed.
	return ValidatedProduct{
		Clave:  clave,
		Codigo: clave,
		Nombre: codigo,
		Precio: precio,
		Activo: true,
	}, nil
}

// dedupeByClave keeps the last product for each clave at the position where
// that clave was first seen.
func dedupeByClave(products []ValidatedProduct) []ValidatedProduct {
	positions := make(map[string]int, len(products))
	out := make([]ValidatedProduct, 0, len(products))

	for _, p := range products {
		if pos, seen := positions[p.Clave]; seen {
			out[pos] = p
			continue
		}
		positions[p.Clave] = len(out)
		out = append(out, p)
	}

	return out
}
