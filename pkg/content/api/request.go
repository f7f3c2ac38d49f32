package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/tendant/content-records/pkg/content"
)

// maxFieldBytes caps each text field of a multipart or form body.
const maxFieldBytes = 64 << 10

// contentForm is the decoded body of POST /data and PUT /data/{id}.
// Absent text fields stay nil.
type contentForm struct {
	Name        *string
	Message     *string
	Info        *string
	RemovePhoto bool
	Photo       *content.ImageUpload
}

// jsonBody is the application/json shape of a create or update request
type jsonBody struct {
	Name        *string `json:"name"`
	Message     *string `json:"message"`
	Info        *string `json:"info"`
	RemovePhoto *bool   `json:"removePhoto"`
}

func (h *Handler) decodeForm(r *http.Request) (*contentForm, error) {
	ct := r.Header.Get("Content-Type")
	mt := ""
	if ct != "" {
		var err error
		if mt, _, err = mime.ParseMediaType(ct); err != nil {
			return nil, badRequest("Content-Type", "is malformed")
		}
	}

	switch mt {
	case "multipart/form-data":
		return h.decodeMultipart(r)
	case "application/x-www-form-urlencoded":
		return decodeURLEncoded(r)
	case "application/json", "":
		return decodeJSON(r)
	default:
		return nil, badRequest("Content-Type", fmt.Sprintf("%s is not supported", mt))
	}
}

func decodeJSON(r *http.Request) (*contentForm, error) {
	var body jsonBody
	if err := render.DecodeJSON(io.LimitReader(r.Body, maxFieldBytes*4), &body); err != nil {
		if errors.Is(err, io.EOF) {
			return &contentForm{}, nil
		}
		return nil, badRequest("body", "is not valid JSON")
	}
	form := &contentForm{Name: body.Name, Message: body.Message, Info: body.Info}
	if body.RemovePhoto != nil {
		form.RemovePhoto = *body.RemovePhoto
	}
	return form, nil
}

func decodeURLEncoded(r *http.Request) (*contentForm, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFieldBytes*4)
	if err := r.ParseForm(); err != nil {
		return nil, badRequest("body", "is not a valid form")
	}
	form := &contentForm{}
	for name, values := range r.PostForm {
		if len(values) == 0 {
			continue
		}
		if err := form.setField(name, values[0]); err != nil {
			return nil, err
		}
	}
	return form, nil
}

func (h *Handler) decodeMultipart(r *http.Request) (*contentForm, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest("body", "is not a valid multipart form")
	}

	form := &contentForm{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, badRequest("body", "is not a valid multipart form")
		}

		err = h.decodePart(form, part)
		part.Close()
		if err != nil {
			return nil, err
		}
	}
}

// decodePart reads one multipart part into the form. Unknown parts are skipped.
func (h *Handler) decodePart(form *contentForm, part *multipart.Part) error {
	name := part.FormName()
	switch name {
	case "photo":
		if form.Photo != nil {
			return badRequest("photo", "only one photo is allowed")
		}
		photo, err := h.readPhoto(part)
		if err != nil {
			return err
		}
		form.Photo = photo
	case "name", "message", "info", "removePhoto":
		data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		if err != nil {
			return badRequest(name, "could not be read")
		}
		if len(data) > maxFieldBytes {
			return badRequest(name, "is too long")
		}
		return form.setField(name, string(data))
	}
	return nil
}

// readPhoto reads at most one byte past the limit so an oversize image is
// rejected without buffering it. An empty file part counts as no photo.
func (h *Handler) readPhoto(part *multipart.Part) (*content.ImageUpload, error) {
	var src io.Reader = part
	if h.limits.MaxBytes > 0 {
		src = io.LimitReader(part, h.limits.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, badRequest("photo", "could not be read")
	}
	if h.limits.MaxBytes > 0 && int64(len(data)) > h.limits.MaxBytes {
		return nil, &content.ValidationError{
			Field:  "photo",
			Reason: fmt.Sprintf("image exceeds the %d byte limit", h.limits.MaxBytes),
			Err:    content.ErrPayloadRejected,
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &content.ImageUpload{
		Data:        data,
		ContentType: content.ResolveContentType(part.Header.Get("Content-Type"), data),
		FileName:    part.FileName(),
	}, nil
}

func (f *contentForm) setField(name, value string) error {
	switch name {
	case "name":
		f.Name = &value
	case "message":
		f.Message = &value
	case "info":
		f.Info = &value
	case "removePhoto":
		if value == "" {
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return badRequest("removePhoto", "must be true or false")
		}
		f.RemovePhoto = b
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
