package core

// error_messages.go maps technical errors to Spanish user messages.
//
// Codes are quoted by admins when they report a problem:
//
//	DB001-DB099    database constraints and connectivity
//	VAL001-VAL099  product and row validation
//	FILE001-FILE099 upload intake and workbook decoding
//	UPL001-UPL099  import lifecycle (limiter, cancellation)
//	NF001-NF099    missing records
//	RATE001        request throttling
//	ERR000         fallback, check logs with the request id
//
// Typed errors are matched first with errors.As/errors.Is. Anything else is
// matched case-insensitively against errorPatterns; the first match wins, so
// specific patterns go before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogo/internal/spreadsheet"
)

// Category is the public error class returned to API clients.
type Category string

const (
	CategoryUnauthorized Category = "UNAUTHORIZED"
	CategoryForbidden    Category = "FORBIDDEN"
	CategoryNotFound     Category = "NOT_FOUND"
	CategoryValidation   Category = "VALIDATION_ERROR"
	CategoryDatabase     Category = "DATABASE_ERROR"
	CategoryFile         Category = "FILE_ERROR"
	CategoryInternal     Category = "INTERNAL_ERROR"
)

// HeaderNotFoundMessage is shown when the decoder cannot locate the header row.
const HeaderNotFoundMessage = "No se encontró la fila de encabezados. Se esperan columnas: Clave, Codigo, Precio"

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message  string   // What happened
	Action   string   // What to do about it
	Code     string   // Support reference
	Category Category // Public class, drives the HTTP status
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Database constraints (DB001-DB002)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message:  "Ya existe un producto con esa clave",
			Action:   "Usa otra clave o edita el producto existente",
			Code:     "DB001",
			Category: CategoryValidation,
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message:  "Un valor no cumple las reglas del catálogo",
			Action:   "Revisa que el precio sea mayor a 0",
			Code:     "DB002",
			Category: CategoryValidation,
		},
	},

	// =========================================================================
	// Database connectivity (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message:  "No se pudo conectar a la base de datos",
			Action:   "Intenta de nuevo en unos momentos",
			Code:     "DB004",
			Category: CategoryDatabase,
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message:  "Se interrumpió la conexión con la base de datos",
			Action:   "Intenta de nuevo",
			Code:     "DB005",
			Category: CategoryDatabase,
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message:  "La operación tardó demasiado",
			Action:   "Intenta con un archivo más pequeño o más tarde",
			Code:     "DB006",
			Category: CategoryDatabase,
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message:  "La base de datos estaba ocupada con operaciones en conflicto",
			Action:   "Intenta de nuevo",
			Code:     "DB007",
			Category: CategoryDatabase,
		},
	},

	// =========================================================================
	// Upload lifecycle (UPL002-UPL005)
	// =========================================================================
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message:  "Hay demasiadas importaciones en curso",
			Action:   "Espera un momento e intenta de nuevo",
			Code:     "UPL002",
			Category: CategoryInternal,
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message:  "La solicitud fue cancelada",
			Action:   "Intenta de nuevo",
			Code:     "UPL004",
			Category: CategoryInternal,
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message:  "La solicitud excedió el tiempo límite",
			Action:   "Intenta con un archivo más pequeño o revisa tu conexión",
			Code:     "UPL005",
			Category: CategoryInternal,
		},
	},

	// =========================================================================
	// Rate limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message:  "Demasiadas solicitudes",
			Action:   "Espera un momento antes de intentar de nuevo",
			Code:     "RATE001",
			Category: CategoryValidation,
		},
	},
}

var defaultMessage = UserMessage{
	Message:  "Ocurrió un error inesperado",
	Action:   "Intenta de nuevo o contacta a soporte",
	Code:     "ERR000",
	Category: CategoryInternal,
}

// MapError converts a technical error to a user message. Typed errors are
// checked first, then the pattern table. Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		fileErr   *FileError
		decodeErr *spreadsheet.DecodeError
		valErr    *ValidationFailedError
	)

	switch {
	case errors.As(err, &fileErr):
		return UserMessage{
			Message:  fileErr.Message,
			Action:   "Sube un archivo .xlsx o .xls de hasta 10MB",
			Code:     "FILE001",
			Category: CategoryFile,
		}, true

	case errors.As(err, &decodeErr):
		if errors.Is(err, spreadsheet.ErrHeaderNotFound) {
			return UserMessage{
				Message:  HeaderNotFoundMessage,
				Action:   "Agrega una fila de encabezados en las primeras 20 filas",
				Code:     "FILE002",
				Category: CategoryFile,
			}, true
		}
		return UserMessage{
			Message:  "No se pudo leer el archivo Excel",
			Action:   "Verifica que el archivo no esté dañado y guárdalo como .xlsx",
			Code:     "FILE003",
			Category: CategoryFile,
		}, true

	case errors.As(err, &valErr):
		return UserMessage{
			Message:  valErr.Message,
			Action:   "Corrige las filas indicadas y vuelve a intentar",
			Code:     "VAL001",
			Category: CategoryValidation,
		}, true

	case errors.Is(err, ErrDuplicateClave):
		return UserMessage{
			Message:  "Ya existe un producto con esa clave",
			Action:   "Usa otra clave o edita el producto existente",
			Code:     "DB001",
			Category: CategoryValidation,
		}, true

	case errors.Is(err, ErrProductNotFound):
		return UserMessage{
			Message:  "Producto no encontrado",
			Action:   "Actualiza la lista de productos",
			Code:     "NF001",
			Category: CategoryNotFound,
		}, true

	case errors.Is(err, ErrImportNotFound):
		return UserMessage{
			Message:  "Importación no encontrada",
			Action:   "Actualiza el historial de importaciones",
			Code:     "NF002",
			Category: CategoryNotFound,
		}, true

	case errors.Is(err, ErrTooManyImports):
		return UserMessage{
			Message:  "Hay demasiadas importaciones en curso",
			Action:   "Espera un momento e intenta de nuevo",
			Code:     "UPL002",
			Category: CategoryInternal,
		}, true

	case errors.Is(err, context.Canceled):
		return UserMessage{
			Message:  "La solicitud fue cancelada",
			Action:   "Intenta de nuevo",
			Code:     "UPL004",
			Category: CategoryInternal,
		}, true
	}

	var fatal *FatalError
	if errors.As(err, &fatal) {
		// Fall through to the cause so connection problems keep their code.
		msg := MapError(fatal.Err)
		if msg.Code == defaultMessage.Code {
			msg.Message = "La importación falló y no se completó"
			msg.Category = CategoryDatabase
		}
		return msg, true
	}

	return UserMessage{}, false
}

// FormatUserError renders "Message (Código: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
