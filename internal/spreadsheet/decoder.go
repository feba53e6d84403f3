// Package spreadsheet decodes catalog workbooks into raw product rows.
//
// Only the first sheet is read. The header row is located by content: the
// first row (within HeaderSearchRows) whose column A reads "CLAVE". Rows
// after the header are emitted as three cells (CLAVE, CODIGO, PRECIO) with
// structurally empty rows and alphabetical section dividers skipped.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// HeaderSearchRows is the maximum number of physical rows scanned for the header.
const HeaderSearchRows = 20

// headerLabel is the column A value that marks the header row.
const headerLabel = "CLAVE"

// dividerMaxLen is the longest column A text treated as a section divider.
const dividerMaxLen = 2

var (
	// ErrHeaderNotFound means no CLAVE header appeared in the scan window.
	ErrHeaderNotFound = errors.New("header not found")

	// ErrNoSheet means the workbook contains no worksheets.
	ErrNoSheet = errors.New("workbook has no sheets")

	// ErrUnreadable means the buffer is not a workbook excelize can open.
	ErrUnreadable = errors.New("unreadable workbook")
)

// DecodeError is a whole-file failure. Reconciliation never starts after one.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode spreadsheet: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CellKind tells how a cell was stored in the workbook.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
)

// Cell is an untyped spreadsheet value. For numeric cells Text holds the
// unformatted stored value (e.g. "12.5"), never the display format.
type Cell struct {
	Kind CellKind
	Text string
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// NumberCell builds a numeric cell from its stored text.
func NumberCell(v string) Cell {
	return Cell{Kind: CellNumber, Text: v}
}

// TextCell builds a text cell.
func TextCell(v string) Cell {
	if v == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: v}
}

// Row is one emitted data row. Codigo carries the product's display name.
type Row struct {
	Clave  string
	Codigo string
	Precio Cell
}

// Result is the decoder output.
type Result struct {
	Rows []Row

	// TotalRows counts every physical row after the header, skipped or not.
	TotalRows int

	// SkippedRows counts rows dropped as structurally absent data.
	SkippedRows int

	SheetName string
}

// Decode reads the first sheet of an .xlsx workbook held in data.
func Decode(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Err: ErrNoSheet}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: read sheet %q: %v", ErrUnreadable, sheet, err)}
	}

	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		return nil, &DecodeError{Err: ErrHeaderNotFound}
	}

	result := &Result{
		Rows:      make([]Row, 0, len(rows)-headerIdx-1),
		TotalRows: len(rows) - headerIdx - 1,
		SheetName: sheet,
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		record := rows[i]
		clave := cellText(record, 0)
		codigo := cellText(record, 1)
		precio := cellText(record, 2)

		if skipRow(clave, codigo, precio) {
			result.SkippedRows++
			continue
		}

		result.Rows = append(result.Rows, Row{
			Clave:  strings.TrimSpace(clave),
			Codigo: strings.TrimSpace(codigo),
			Precio: precioCell(f, sheet, i, precio),
		})
	}

	return result, nil
}

// findHeaderRow returns the index of the header row, or -1 if none is found
// within HeaderSearchRows.
func findHeaderRow(rows [][]string) int {
	limit := min(len(rows), HeaderSearchRows)
	for i := 0; i < limit; i++ {
		if len(rows[i]) == 0 {
			continue
		}
		if strings.ToUpper(strings.TrimSpace(rows[i][0])) == headerLabel {
			return i
		}
	}
	return -1
}

// skipRow applies the row-skip rules in order: fully empty, section
// divider, then missing clave or codigo.
func skipRow(clave, codigo, precio string) bool {
	if clave == "" && codigo == "" && precio == "" {
		return true
	}
	if isSectionDivider(clave, codigo, precio) {
		return true
	}
	return clave == "" || codigo == ""
}

// isSectionDivider matches single-letter alphabetical headers such as "M".
func isSectionDivider(clave, codigo, precio string) bool {
	return clave != "" &&
		codigo == "" &&
		precio == "" &&
		utf8.RuneCountInString(strings.TrimSpace(clave)) <= dividerMaxLen
}

// cellText returns the value at col, or "" when the row is shorter.
// excelize trims trailing empty cells, so short rows are common.
func cellText(record []string, col int) string {
	if col < len(record) {
		return record[col]
	}
	return ""
}

// precioCell classifies the PRECIO value using the stored cell type so a
// numeric 12.5 and the text "$12.50" reach the validator distinguishably.
func precioCell(f *excelize.File, sheet string, rowIdx int, value string) Cell {
	if value == "" {
		return Cell{}
	}

	axis, err := excelize.CoordinatesToCellName(3, rowIdx+1)
	if err != nil {
		return TextCell(value)
	}

	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return TextCell(value)
	}

	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		return NumberCell(value)
	default:
		return TextCell(value)
	}
}
