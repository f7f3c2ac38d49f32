package presigned

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tendant/content-records/pkg/content"
)

// Source is the subset of a blob store the download handler reads from
type Source interface {
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)
	GetObjectMeta(ctx context.Context, objectKey string) (*content.ObjectMeta, error)
}

// Handler serves blobs addressed by URLs issued by a Signer
type Handler struct {
	signer *Signer
	source Source
	logger *slog.Logger
}

// NewHandler returns a handler that validates the signature before streaming
// the object from source.
func NewHandler(signer *Signer, source Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{signer: signer, source: source, logger: logger.With("component", "presigned_handler")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.signer.ValidateRequest(r); err != nil {
		h.logger.DebugContext(r.Context(), "rejected signed url", "path", r.URL.Path, "err", err)
		handleValidationError(w, err)
		return
	}

	key, err := h.signer.ExtractObjectKey(r.URL.Path)
	if err != nil {
		http.Error(w, "invalid blob path", http.StatusBadRequest)
		return
	}

	meta, err := h.source.GetObjectMeta(r.Context(), key)
	if errors.Is(err, content.ErrObjectNotFound) {
		http.Error(w, "blob not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to stat blob", "key", key, "err", err)
		http.Error(w, "failed to read blob", http.StatusInternalServerError)
		return
	}

	rc, err := h.source.Download(r.Context(), key)
	if errors.Is(err, content.ErrObjectNotFound) {
		http.Error(w, "blob not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to open blob", "key", key, "err", err)
		http.Error(w, "failed to read blob", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "blob stream interrupted", "key", key, "err", err)
	}
}

func handleValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidExpiration):
		http.Error(w, "invalid expires parameter", http.StatusBadRequest)
	case errors.Is(err, ErrExpired):
		http.Error(w, "signed URL has expired", http.StatusForbidden)
	case IsAuthError(err):
		http.Error(w, "invalid signature", http.StatusForbidden)
	default:
		http.Error(w, "signed URLs are not enabled", http.StatusForbidden)
	}
}
