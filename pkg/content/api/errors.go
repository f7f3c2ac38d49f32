package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/content-records/pkg/content"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation        = "ValidationError"
	CodeNotFound          = "NotFound"
	CodeUploadFailed      = "UploadFailed"
	CodePersistenceFailed = "PersistenceFailed"
	CodeInternal          = "InternalError"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a service error to a status, code and client-safe message.
func classify(err error) (int, string, string) {
	var ve *content.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, CodeValidation, ve.Error()
	case content.IsValidation(err):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case content.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound, "content not found"
	case errors.Is(err, content.ErrImageUploadFailed):
		return http.StatusInternalServerError, CodeUploadFailed, "image upload failed"
	case errors.Is(err, content.ErrRecordCreateFailed):
		return http.StatusInternalServerError, CodePersistenceFailed, "record create failed"
	case errors.Is(err, content.ErrPersistenceFailed):
		return http.StatusInternalServerError, CodePersistenceFailed, "persistence failed"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, Code: code})
}

func badRequest(field, reason string) error {
	return &content.ValidationError{Field: field, Reason: reason}
}
