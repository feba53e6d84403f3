package web

// errors.go provides unified error responses for the API.
//
// Every failure is logged with the technical error and request id, then
// returned as
//
//	{"success": false, "error": {"code", "message", "action", "ref", "requestId", "details"}}
//
// where code is the public category, ref the support code from
// core.MapError and details carries row or field problems when present.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/JonMunkholm/catalogo/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	errRouteNotFound = errors.New("route not found")
	errInvalidID     = errors.New("invalid id")
	errInvalidBody   = errors.New("invalid request body")
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code      core.Category `json:"code"`
	Message   string        `json:"message"`
	Action    string        `json:"action,omitempty"`
	Ref       string        `json:"ref"`
	RequestID string        `json:"requestId,omitempty"`
	Details   any           `json:"details,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// respondError logs err and writes the mapped error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := mapError(err)
	status := statusFor(err, msg)
	requestID := middleware.GetReqID(r.Context())

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	writeJSON(w, status, ErrorResponse{
		Error: ErrorBody{
			Code:      msg.Category,
			Message:   msg.Message,
			Action:    msg.Action,
			Ref:       msg.Code,
			RequestID: requestID,
			Details:   errorDetails(err),
		},
	})
}

// mapError extends core.MapError with the web layer's own failures.
func mapError(err error) core.UserMessage {
	switch {
	case errors.Is(err, errRouteNotFound):
		return core.UserMessage{
			Message:  "Ruta no encontrada",
			Action:   "Verifica la dirección de la solicitud",
			Code:     "NF000",
			Category: core.CategoryNotFound,
		}
	case errors.Is(err, errInvalidID):
		return core.UserMessage{
			Message:  "Identificador no válido",
			Action:   "Usa el id devuelto por la API",
			Code:     "VAL002",
			Category: core.CategoryValidation,
		}
	case errors.Is(err, errInvalidBody):
		return core.UserMessage{
			Message:  "El cuerpo de la solicitud no es JSON válido",
			Action:   "Revisa el formato de los datos enviados",
			Code:     "VAL003",
			Category: core.CategoryValidation,
		}
	}
	return core.MapError(err)
}

// statusFor picks the HTTP status for a mapped error.
func statusFor(err error, msg core.UserMessage) int {
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrDuplicateClave):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch msg.Category {
	case core.CategoryValidation, core.CategoryFile:
		return http.StatusBadRequest
	case core.CategoryNotFound:
		return http.StatusNotFound
	case core.CategoryUnauthorized:
		return http.StatusUnauthorized
	case core.CategoryForbidden:
		return http.StatusForbidden
	case core.CategoryDatabase:
		if msg.Code == "DB004" || msg.Code == "DB005" {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorDetails exposes row or field problems and the id of a failed import.
func errorDetails(err error) any {
	var valErr *core.ValidationFailedError
	if errors.As(err, &valErr) {
		switch {
		case len(valErr.Fields) > 0:
			return valErr.Fields
		case len(valErr.Details) > 0:
			return valErr.Details
		}
		return nil
	}

	var fatal *core.FatalError
	if errors.As(err, &fatal) {
		return map[string]any{
			"importId": fatal.Run.ID,
			"estado":   fatal.Run.Estado,
		}
	}
	return nil
}

// writeJSON encodes v as JSON with status. Encoding errors are logged since
// headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
