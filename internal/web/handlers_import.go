package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/catalogo/internal/core"
)

const (
	// multipartOverhead is allowed on top of the file limit for boundaries
	// and part headers.
	multipartOverhead = 1 << 20

	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 16 << 20
)

// handleImport accepts a workbook in the multipart field "file" and runs
// the import pipeline synchronously.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	upload, err := readUpload(r, maxSize)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.ImportCatalog(r.Context(), upload, core.ActorFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Import.MaxWait.Seconds())))
		}
		respondError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, result,
		fmt.Sprintf("Importación completada: %d creados, %d actualizados", result.Creados, result.Actualizados))
}

// handlePreviewImport reports what importing the uploaded workbook would do
// without writing anything.
func (s *Server) handlePreviewImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	upload, err := readUpload(r, maxSize)
	if err != nil {
		respondError(w, r, err)
		return
	}

	preview, err := s.service.PreviewImport(r.Context(), upload)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, preview,
		fmt.Sprintf("Vista previa: %d nuevos, %d actualizaciones", preview.Resumen.Nuevos, preview.Resumen.Actualizaciones))
}

// readUpload extracts the "file" part. A missing part yields an empty
// Upload, which the service rejects with the no-file message. Parts
// declared larger than maxSize are not read.
func readUpload(r *http.Request, maxSize int64) (core.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return core.Upload{}, core.FileTooLarge(maxSize)
		}
		return core.Upload{}, nil
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Upload{}, nil
	}
	defer file.Close()

	upload := core.Upload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
	}
	if header.Size > maxSize {
		return upload, nil
	}

	upload.Data, err = io.ReadAll(file)
	if err != nil {
		return core.Upload{}, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}
	return upload, nil
}

// handleImportStatus reports import slot occupancy.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, s.service.ImportStatus(), "")
}

// handleListImports returns the import history, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "pagina", 1)
	perPage := parseIntParam(r, "porPagina", core.DefaultHistoryPageSize)

	history, err := s.service.ListImports(r.Context(), page, perPage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, history, "")
}

// handleGetImport returns one import run with its itemized errors.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	run, err := s.service.GetImport(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, run, "")
}

// handleStats returns the admin dashboard summary.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, stats, "")
}
