package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/content-records/pkg/content"
)

// Handler serves the /data resource
type Handler struct {
	service content.Service
	limits  content.Limits
	logger  *slog.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLimits sets the upload limits enforced while reading multipart photos
func WithLimits(limits content.Limits) HandlerOption {
	return func(h *Handler) {
		h.limits = limits
	}
}

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler for the content service
func NewHandler(service content.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		limits:  content.DefaultLimits(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "content_api")
	return h
}

// Routes returns the routes for /data
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListContent)
	r.Post("/", h.CreateContent)
	r.Get("/{id}", h.GetContent)
	r.Put("/{id}", h.UpdateContent)
	r.Delete("/{id}", h.DeleteContent)

	return r
}

// ListContent returns every record with a fresh image URL
func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListContent(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []*content.ContentView{}
	}
	absoluteImageURLs(r, views...)
	render.JSON(w, r, views)
}

// GetContent returns a single record
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.GetContent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	absoluteImageURLs(r, view)
	render.JSON(w, r, view)
}

// CreateContent creates a record from a multipart, form or JSON body
func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	form, err := h.decodeForm(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if form.RemovePhoto {
		h.writeError(w, r, badRequest("removePhoto", "is only valid on update"))
		return
	}

	view, err := h.service.CreateContent(r.Context(), content.CreateContentRequest{
		Name:    deref(form.Name),
		Message: deref(form.Message),
		Info:    deref(form.Info),
		Image:   form.Photo,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	absoluteImageURLs(r, view)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, view)
}

// UpdateContent applies the supplied fields to an existing record
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	form, err := h.decodeForm(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.UpdateContent(r.Context(), content.UpdateContentRequest{
		ID:          id,
		Name:        form.Name,
		Message:     form.Message,
		Info:        form.Info,
		Image:       form.Photo,
		RemoveImage: form.RemovePhoto,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	absoluteImageURLs(r, view)
	render.JSON(w, r, view)
}

// DeleteContent removes a record and its image
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.DeleteContent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// absoluteImageURLs resolves relative image URLs, issued when no public base
// URL is configured, against the scheme and host of the request.
func absoluteImageURLs(r *http.Request, views ...*content.ContentView) {
	base := requestBaseURL(r)
	for _, v := range views {
		if v == nil || v.ImageURL == nil {
			continue
		}
		if u := *v.ImageURL; strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") {
			abs := base + u
			v.ImageURL = &abs
		}
	}
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("id", "must be a UUID")
	}
	return id, nil
}
