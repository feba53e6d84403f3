package spreadsheet

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// sheetRows maps a 1-based physical row number to its A, B, C values.
// nil values are left unset so the cell stays truly empty.
type sheetRows map[int][]any

func buildWorkbook(t *testing.T, rows sheetRows) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for rowNum, values := range rows {
		for col, v := range values {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(col+1, rowNum)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, axis, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// ============================================================================
// Header detection
// ============================================================================

func TestDecode_HeaderOnFirstRow(t *testing.T) {
	data := buildWorkbook(t, sheetRows{
		1: {"Clave", "Codigo", "Precio"},
		2: {"A1", "Aspirina", 12.5},
		3: {"B2", "Paracetamol", "$1,250.00"},
	})

	res, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", res.SheetName)
	assert.Equal(t, 2, res.TotalRows)
	assert.Equal(t, 0, res.SkippedRows)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, Row{Clave: "A1", Codigo: "Aspirina", Precio: NumberCell("12.5")}, res.Rows[0])
	assert.Equal(t, Row{Clave: "B2", Codigo: "Paracetamol", Precio: TextCell("$1,250.00")}, res.Rows[1])
}

func TestDecode_HeaderAfterTitleRows(t *testing.T) {
	data := buildWorkbook(t, sheetRows{
		1: {"LISTA DE PRECIOS"},
		2: {"Vigente desde marzo"},
		4: {"  clave ", "codigo", "precio"},
		5: {"X9", "Ibuprofeno", 30},
	})

	res, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalRows)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "X9", res.Rows[0].Clave)
	assert.Equal(t, NumberCell("30"), res.Rows[0].Precio)
}

func TestDecode_HeaderScanWindow(t *testing.T) {
	tests := []struct {
		name      string
		headerRow int
		wantErr   bool
	}{
		{name: "last row inside window", headerRow: HeaderSearchRows, wantErr: false},
		{name: "first row outside window", headerRow: HeaderSearchRows + 1, wantErr: true},
		{name: "row 25", headerRow: 25, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildWorkbook(t, sheetRows{
				1:                {"Catalogo"},
				tt.headerRow:     {"CLAVE", "CODIGO", "PRECIO"},
				tt.headerRow + 1: {"A1", "Aspirina", 10},
			})

			res, err := Decode(data)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, res.Rows, 1)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrHeaderNotFound), "want ErrHeaderNotFound, got %v", err)

			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr), "want *DecodeError, got %T", err)
		})
	}
}

func TestDecode_Unreadable(t *testing.T) {
	_, err := Decode([]byte("CLAVE,CODIGO,PRECIO\nA1,Aspirina,10\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable), "want ErrUnreadable, got %v", err)

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

// ============================================================================
// Row skipping
// ============================================================================

func TestDecode_SkipRules(t *testing.T) {
	data := buildWorkbook(t, sheetRows{
		1:  {"CLAVE", "CODIGO", "PRECIO"},
		2:  {"A1", "Aspirina", 12.5},
		3:  {"M"},                        // section divider
		4:  {"AB", nil, nil},             // two-letter divider
		6:  {"C3", "Clonazepam", 45},     // row 5 is empty
		7:  {"LONG", nil, nil},           // no codigo, not a divider
		8:  {nil, "Sin clave", 9},        // no clave
		9:  {"D4", nil, 15},              // no codigo, has price
		10: {"E5", "Enalapril", nil},     // missing price still emitted
		11: {"  F6 ", "  Fluoxetina ", 3}, // trimmed
	})

	res, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 10, res.TotalRows)
	assert.Equal(t, 6, res.SkippedRows)

	claves := make([]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		claves = append(claves, r.Clave)
	}
	assert.Equal(t, []string{"A1", "C3", "E5", "F6"}, claves)

	assert.True(t, res.Rows[2].Precio.IsEmpty(), "E5 precio should be empty")
	assert.Equal(t, "Fluoxetina", res.Rows[3].Codigo)
}

func TestDecode_TotalRowsCountsSkipped(t *testing.T) {
	rows := sheetRows{1: {"CLAVE", "CODIGO", "PRECIO"}}
	for i := 0; i < 5; i++ {
		rows[2+i*2] = []any{fmt.Sprintf("K%d", i), "Producto", 1}
		rows[3+i*2] = []any{string(rune('A' + i))}
	}

	res, err := Decode(buildWorkbook(t, rows))
	require.NoError(t, err)

	assert.Equal(t, 10, res.TotalRows)
	assert.Equal(t, 5, res.SkippedRows)
	assert.Len(t, res.Rows, 5)
}

// ============================================================================
// Helpers
// ============================================================================

func TestIsSectionDivider(t *testing.T) {
	tests := []struct {
		name                  string
		clave, codigo, precio string
		want                  bool
	}{
		{"single letter", "M", "", "", true},
		{"padded letter", "  Ñ ", "", "", true},
		{"two letters", "CH", "", "", true},
		{"three letters", "ABC", "", "", false},
		{"has codigo", "M", "Metformina", "", false},
		{"has precio", "M", "", "10", false},
		{"empty clave", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSectionDivider(tt.clave, tt.codigo, tt.precio); got != tt.want {
				t.Errorf("isSectionDivider(%q, %q, %q) = %v, want %v", tt.clave, tt.codigo, tt.precio, got, tt.want)
			}
		})
	}
}

func TestTextCell_EmptyIsEmpty(t *testing.T) {
	if !TextCell("").IsEmpty() {
		t.Error("TextCell(\"\") should be empty")
	}
	if TextCell("0").IsEmpty() {
		t.Error("TextCell(\"0\") should not be empty")
	}
}
