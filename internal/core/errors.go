package core

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when no product has the requested id.
	ErrProductNotFound = errors.New("product not found")

	// ErrImportNotFound is returned when no import run has the requested id.
	ErrImportNotFound = errors.New("import run not found")

	// ErrDuplicateClave is returned when a manual create or edit collides with
	// an existing clave.
	ErrDuplicateClave = errors.New("duplicate clave")
)

// FileError rejects an upload before it is decoded. Message is user facing.
type FileError struct {
	Message string
}

func (e *FileError) Error() string {
	return "file error: " + e.Message
}

// FieldError is one invalid field of a manual product edit.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationFailedError stops a request whose input cannot be imported or
// saved at all. Details carries per-row problems of an import, Fields the
// problems of a product form.
type ValidationFailedError struct {
	Message string
	Details []RowError
	Fields  []FieldError
}

func (e *ValidationFailedError) Error() string {
	return "validation error: " + e.Message
}

// FatalError aborts a whole reconciliation. The FALLIDO audit record has
// already been written (best effort) when it is returned.
type FatalError struct {
	Phase ReconcilePhase
	Err   error
	Run   ImportRun
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("import %s failed in phase %s: %v", e.Run.ID, e.Phase, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
