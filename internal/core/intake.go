package core

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize is the upload ceiling when none is configured.
const DefaultMaxFileSize int64 = 10 << 20

// AcceptedMimeTypes are the workbook content types accepted at intake.
var AcceptedMimeTypes = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
}

var acceptedExtensions = []string{".xlsx", ".xls"}

// MaxFileNameLen matches the import_runs.nombre_archivo column.
const MaxFileNameLen = 255

const (
	msgNoFile        = "No se proporcionó archivo"
	msgInvalidFormat = "Formato de archivo no válido. Se aceptan .xlsx y .xls"
	msgTooLarge      = "El archivo excede el tamaño máximo de %dMB"
	msgNameTooLong   = "El nombre del archivo no puede exceder 255 caracteres"
)

// Upload is a workbook as received from the client.
type Upload struct {
	Data     []byte
	FileName string
	MimeType string
	Size     int64 // Declared size; len(Data) is used when zero
}

// CheckUpload rejects uploads that must not reach the decoder. A file passes
// the format check when either its MIME type or its extension is accepted.
func CheckUpload(u Upload, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	size := u.Size
	if size <= 0 {
		size = int64(len(u.Data))
	}
	if size == 0 {
		return &FileError{Message: msgNoFile}
	}

	if !acceptedFormat(u.FileName, u.MimeType) {
		return &FileError{Message: msgInvalidFormat}
	}

	if utf8.RuneCountInString(u.FileName) > MaxFileNameLen {
		return &FileError{Message: msgNameTooLong}
	}

	if size > maxSize {
		return FileTooLarge(maxSize)
	}

	return nil
}

// FileTooLarge is the intake error for uploads above maxSize. The web layer
// returns it when the request body overruns its limit before the file can be
// read.
func FileTooLarge(maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &FileError{Message: fmt.Sprintf(msgTooLarge, maxSize>>20)}
}

func acceptedFormat(fileName, mimeType string) bool {
	mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	if slices.Contains(AcceptedMimeTypes, strings.TrimSpace(mediaType)) {
		return true
	}
	return slices.Contains(acceptedExtensions, strings.ToLower(filepath.Ext(fileName)))
}
