package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/catalogo/internal/spreadsheet"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     string
		wantMessage  string
		wantCategory Category
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:         "duplicate key pattern",
			err:          errors.New("ERROR: duplicate key value violates unique constraint \"productos_clave_key\""),
			wantCode:     "DB001",
			wantMessage:  "Ya existe un producto con esa clave",
			wantCategory: CategoryValidation,
		},
		{
			name:         "duplicate clave sentinel",
			err:          fmt.Errorf("create product: %w", ErrDuplicateClave),
			wantCode:     "DB001",
			wantMessage:  "Ya existe un producto con esa clave",
			wantCategory: CategoryValidation,
		},
		{
			name:         "connection refused",
			err:          errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			wantCode:     "DB004",
			wantMessage:  "No se pudo conectar a la base de datos",
			wantCategory: CategoryDatabase,
		},
		{
			name:         "timeout",
			err:          errors.New("read: i/o timeout"),
			wantCode:     "DB006",
			wantMessage:  "La operación tardó demasiado",
			wantCategory: CategoryDatabase,
		},
		{
			name:         "file error keeps its message",
			err:          &FileError{Message: "El archivo excede el tamaño máximo de 10MB"},
			wantCode:     "FILE001",
			wantMessage:  "El archivo excede el tamaño máximo de 10MB",
			wantCategory: CategoryFile,
		},
		{
			name:         "missing header",
			err:          &spreadsheet.DecodeError{Err: spreadsheet.ErrHeaderNotFound},
			wantCode:     "FILE002",
			wantMessage:  HeaderNotFoundMessage,
			wantCategory: CategoryFile,
		},
		{
			name:         "unreadable workbook",
			err:          &spreadsheet.DecodeError{Err: spreadsheet.ErrUnreadable},
			wantCode:     "FILE003",
			wantMessage:  "No se pudo leer el archivo Excel",
			wantCategory: CategoryFile,
		},
		{
			name:         "validation failed",
			err:          &ValidationFailedError{Message: "No se encontraron productos válidos en el archivo"},
			wantCode:     "VAL001",
			wantMessage:  "No se encontraron productos válidos en el archivo",
			wantCategory: CategoryValidation,
		},
		{
			name:         "product not found",
			err:          fmt.Errorf("get product: %w", ErrProductNotFound),
			wantCode:     "NF001",
			wantMessage:  "Producto no encontrado",
			wantCategory: CategoryNotFound,
		},
		{
			name:         "limiter busy",
			err:          ErrTooManyImports,
			wantCode:     "UPL002",
			wantMessage:  "Hay demasiadas importaciones en curso",
			wantCategory: CategoryInternal,
		},
		{
			name:         "fatal keeps cause code",
			err:          &FatalError{Phase: PhasePending, Err: errors.New("connection reset by peer")},
			wantCode:     "DB005",
			wantMessage:  "Se interrumpió la conexión con la base de datos",
			wantCategory: CategoryDatabase,
		},
		{
			name:         "fatal with unknown cause",
			err:          &FatalError{Phase: PhaseApplied, Err: errors.New("weird")},
			wantCode:     "ERR000",
			wantMessage:  "La importación falló y no se completó",
			wantCategory: CategoryDatabase,
		},
		{
			name:         "cancelled fatal",
			err:          &FatalError{Phase: PhasePartitioned, Err: context.Canceled},
			wantCode:     "UPL004",
			wantMessage:  "La solicitud fue cancelada",
			wantCategory: CategoryInternal,
		},
		{
			name:         "unknown error returns default",
			err:          errors.New("some random internal error"),
			wantCode:     "ERR000",
			wantMessage:  "Ocurrió un error inesperado",
			wantCategory: CategoryInternal,
		},
		{
			name:         "case insensitive matching",
			err:          errors.New("DEADLOCK DETECTED"),
			wantCode:     "DB007",
			wantMessage:  "La base de datos estaba ocupada con operaciones en conflicto",
			wantCategory: CategoryDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("MapError() category = %q, want %q", got.Category, tt.wantCategory)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(errors.New("deadlock detected"))

	expected := "La base de datos estaba ocupada con operaciones en conflicto (Código: DB007). Intenta de nuevo"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known pattern is user facing", err: errors.New("duplicate key"), want: true},
		{name: "typed error is user facing", err: &FileError{Message: "x"}, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
