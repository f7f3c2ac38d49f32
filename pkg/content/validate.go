package content

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultMaxUploadBytes is the default image size limit (5 MiB).
const DefaultMaxUploadBytes int64 = 5 << 20

// DefaultAllowedTypes lists the image content types accepted by default.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif"}

// Limits bounds what Put accepts.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultLimits returns the 5 MiB jpeg/png/gif limits.
func DefaultLimits() Limits {
	types := make([]string, len(DefaultAllowedTypes))
	copy(types, DefaultAllowedTypes)
	return Limits{MaxBytes: DefaultMaxUploadBytes, AllowedTypes: types}
}

// Allows reports whether contentType is in the allow list. Parameters such as
// charset are ignored.
func (l Limits) Allows(contentType string) bool {
	mt := mediaType(contentType)
	for _, t := range l.AllowedTypes {
		if strings.EqualFold(mt, strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}

// Check validates an image payload against the limits.
func (l Limits) Check(size int64, contentType string) error {
	if size == 0 {
		return &ValidationError{Field: "photo", Reason: "image is empty", Err: ErrPayloadRejected}
	}
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return &ValidationError{
			Field:  "photo",
			Reason: fmt.Sprintf("image is %d bytes, limit is %d", size, l.MaxBytes),
			Err:    ErrPayloadRejected,
		}
	}
	if !l.Allows(contentType) {
		return &ValidationError{
			Field:  "photo",
			Reason: fmt.Sprintf("content type %q is not allowed", mediaType(contentType)),
			Err:    ErrPayloadRejected,
		}
	}
	return nil
}

// ResolveContentType returns the type the bytes are stored under. An empty or
// generic declaration is replaced by the sniffed type, and so is a declared
// image type whose signature the bytes do not carry.
func ResolveContentType(declared string, data []byte) string {
	mt := mediaType(declared)
	if mt == "" || mt == "application/octet-stream" {
		return mediaType(http.DetectContentType(data))
	}
	if _, ok := sniffedImageTypes[mt]; ok {
		return mediaType(http.DetectContentType(data))
	}
	return mt
}

// sniffedImageTypes are the image types http.DetectContentType recognises by
// signature. Declarations outside this set cannot be cross-checked.
var sniffedImageTypes = map[string]struct{}{
	"image/jpeg":   {},
	"image/png":    {},
	"image/gif":    {},
	"image/webp":   {},
	"image/bmp":    {},
	"image/x-icon": {},
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func validateCreate(req *CreateContentRequest) error {
	req.Name = normalizeText(req.Name)
	req.Message = normalizeText(req.Message)
	req.Info = normalizeText(req.Info)
	if req.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return nil
}

func validateUpdate(req *UpdateContentRequest) error {
	req.Name = normalizeOptionalText(req.Name)
	req.Message = normalizeOptionalText(req.Message)
	req.Info = normalizeOptionalText(req.Info)
	if req.Name != nil && *req.Name == "" {
		return &ValidationError{Field: "name", Reason: "cannot be blank"}
	}
	if req.Image != nil && req.RemoveImage {
		return &ValidationError{Field: "removePhoto", Reason: "cannot be combined with a new photo"}
	}
	return nil
}
