package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalogo/internal/logging"
	"github.com/JonMunkholm/catalogo/internal/spreadsheet"
	"github.com/google/uuid"
)

// Rejection reasons reported to the Observer.
const (
	RejectFile    = "archivo"
	RejectDecode  = "decodificacion"
	RejectNoValid = "sin_validos"
	RejectTooMany = "limite_productos"
	RejectBusy    = "ocupado"
)

// Row kinds reported to the Observer.
const (
	RowKindSkipped = "omitida"
	RowKindInvalid = "invalida"
	RowKindDupe    = "duplicada"
)

const (
	msgNoValidRows  = "No se encontraron productos válidos en el archivo"
	msgTooManyItems = "El archivo contiene %d productos; el máximo por importación es %d"
)

// ImportResponse is the result surface of a completed import.
type ImportResponse struct {
	ImportID            uuid.UUID     `json:"importId"`
	Estado              Estado        `json:"estado"`
	Creados             int           `json:"creados"`
	Actualizados        int           `json:"actualizados"`
	Errores             []ImportError `json:"errores"`
	DuracionMs          int64         `json:"duracionMs"`
	TotalFilas          int           `json:"totalFilas"`
	FilasOmitidas       int           `json:"filasOmitidas"`
	DuplicadosRemovidos int           `json:"duplicadosRemovidos"`
	ErroresValidacion   []RowError    `json:"erroresValidacion"`
}

// ImportCatalog runs the whole pipeline for one uploaded workbook: intake
// checks, decode, validate and dedupe, archive, reconcile. Intake, decode and
// validation failures return before any write. Reconciliation failures
// return *FatalError after the FALLIDO record is written.
func (s *Service) ImportCatalog(ctx context.Context, upload Upload, importedBy string) (*ImportResponse, error) {
	logger := logging.WithFields(ctx, "archivo", upload.FileName, "importado_por", importedBy)

	if err := CheckUpload(upload, s.cfg.MaxFileSize); err != nil {
		s.observer.ObserveRejection(RejectFile)
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyImports) {
			s.observer.ObserveRejection(RejectBusy)
		}
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	decoded, err := spreadsheet.Decode(upload.Data)
	if err != nil {
		s.observer.ObserveRejection(RejectDecode)
		return nil, err
	}
	logger.Debug("workbook decoded",
		"sheet", decoded.SheetName,
		"rows", len(decoded.Rows),
		"skipped", decoded.SkippedRows,
	)

	processed := ValidateRows(decoded.Rows)
	s.observer.ObserveRows(RowKindSkipped, decoded.SkippedRows)
	s.observer.ObserveRows(RowKindInvalid, len(processed.Errors))
	s.observer.ObserveRows(RowKindDupe, processed.DuplicatesRemoved)

	if len(processed.ValidProducts) == 0 {
		s.observer.ObserveRejection(RejectNoValid)
		return nil, &ValidationFailedError{Message: msgNoValidRows, Details: processed.Errors}
	}
	if n := len(processed.ValidProducts); n > s.cfg.MaxProducts {
		s.observer.ObserveRejection(RejectTooMany)
		return nil, &ValidationFailedError{Message: fmt.Sprintf(msgTooManyItems, n, s.cfg.MaxProducts)}
	}

	meta := ImportMeta{
		ID:         uuid.New(),
		FileName:   upload.FileName,
		ImportedBy: importedBy,
	}

	key, err := s.archiver.Archive(ctx, meta.ID, upload.FileName, upload.MimeType, upload.Data)
	if err != nil {
		logger.Warn("upload not archived", "import_id", meta.ID, "error", err)
	}
	meta.ArchiveKey = key

	result, err := s.reconciler.Run(ctx, processed.ValidProducts, meta)
	if err != nil {
		var fatal *FatalError
		if errors.As(err, &fatal) && fatal.Phase != PhaseApplied {
			s.afterRun(ctx, fatal.Run, processed.ValidProducts)
		}
		return nil, err
	}
	s.afterRun(ctx, result.Run, processed.ValidProducts)

	errores := result.Errores
	if errores == nil {
		errores = []ImportError{}
	}
	validationErrors := processed.Errors
	if validationErrors == nil {
		validationErrors = []RowError{}
	}

	return &ImportResponse{
		ImportID:            result.Run.ID,
		Estado:              result.Run.Estado,
		Creados:             result.Creados,
		Actualizados:        result.Actualizados,
		Errores:             errores,
		DuracionMs:          result.DuracionMs,
		TotalFilas:          len(decoded.Rows),
		FilasOmitidas:       decoded.SkippedRows,
		DuplicadosRemovidos: processed.DuplicatesRemoved,
		ErroresValidacion:   validationErrors,
	}, nil
}

// afterRun fans a recorded run out to metrics, cache and events. None of
// these can fail the import.
func (s *Service) afterRun(ctx context.Context, run ImportRun, touched []ValidatedProduct) {
	logger := logging.WithFields(ctx, "import_id", run.ID)
	s.observer.ObserveImport(run)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if len(touched) > 0 && run.ProductosCreados+run.ProductosActualizados > 0 {
		claves := make([]string, len(touched))
		for i, p := range touched {
			claves[i] = p.Clave
		}
		if err := s.cache.InvalidateProducts(ctx, claves); err != nil {
			logger.Warn("cache invalidation failed", "error", err)
		}
	}

	if err := s.events.PublishImportRun(ctx, run); err != nil {
		logger.Warn("import event not published", "error", err)
	}
}
