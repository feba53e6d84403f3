package core

// convert.go turns spreadsheet cells into catalog values.
//
// Prices arrive either as numeric cells or as currency formatted text such
// as "$1,250.00". Text is cleaned by removing "$", "," and all whitespace
// before parsing; what remains must be a plain decimal.

import (
	"errors"
	"strings"
	"unicode"

	"github.com/JonMunkholm/catalogo/internal/spreadsheet"
	"github.com/shopspring/decimal"
)

var (
	// ErrPrecioNoPositivo is reported for numeric prices <= 0.
	ErrPrecioNoPositivo = errors.New("El precio debe ser mayor a 0")

	// ErrPrecioInvalido is reported for text prices that do not parse to a positive value.
	ErrPrecioInvalido = errors.New("Precio inválido")

	// ErrPrecioExcedido is reported for prices the catalog column cannot hold.
	ErrPrecioExcedido = errors.New("El precio excede el máximo permitido")
)

// maxPrecio is the smallest value the NUMERIC(12,2) precio column rejects.
var maxPrecio = decimal.New(1, 10)

// ParsePrecio converts a PRECIO cell into a positive decimal rounded to
// cents. An empty cell is treated as the number 0.
func ParsePrecio(c spreadsheet.Cell) (decimal.Decimal, error) {
	switch c.Kind {
	case spreadsheet.CellEmpty:
		return decimal.Zero, ErrPrecioNoPositivo

	case spreadsheet.CellNumber:
		d, err := decimal.NewFromString(strings.TrimSpace(c.Text))
		if err != nil {
			return decimal.Zero, ErrPrecioInvalido
		}
		return storablePrecio(d)

	default:
		d, err := decimal.NewFromString(cleanPrecioText(c.Text))
		if err != nil || !d.IsPositive() {
			return decimal.Zero, ErrPrecioInvalido
		}
		return storablePrecio(d)
	}
}

// storablePrecio rounds d to cents the way the store does and rejects values
// that would then be zero or overflow the column.
func storablePrecio(d decimal.Decimal) (decimal.Decimal, error) {
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrPrecioNoPositivo
	}
	if d.GreaterThanOrEqual(maxPrecio) {
		return decimal.Zero, ErrPrecioExcedido
	}
	return d, nil
}

// cleanPrecioText strips currency symbols, thousands separators and whitespace.
func cleanPrecioText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// optionalText returns nil for blank strings, otherwise a trimmed copy.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
