package content

import (
	"time"

	"github.com/google/uuid"
)

// Record is a content record as persisted by a Repository.
// ImageKey is nil when the record has no image; it is never empty.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Info      string    `json:"info"`
	ImageKey  *string   `json:"imageKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRecord holds the fields of a record to insert. The repository assigns ID
// and timestamps.
type NewRecord struct {
	Name     string
	Message  string
	Info     string
	ImageKey *string
}

// RecordPatch is a partial update. Nil text fields are left unchanged.
// ImageKey is only applied when SetImageKey is true; a nil ImageKey then
// clears the image.
type RecordPatch struct {
	Name        *string
	Message     *string
	Info        *string
	SetImageKey bool
	ImageKey    *string
}

// ContentView is a record together with a freshly signed image URL.
type ContentView struct {
	Record
	ImageURL *string `json:"imageUrl"`
}

// DeleteResult is returned by DeleteContent.
type DeleteResult struct {
	Message   string    `json:"message"`
	DeletedID uuid.UUID `json:"deletedId"`
}

// ImageUpload is an image supplied with a create or update request.
type ImageUpload struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Size returns the payload size in bytes.
func (i *ImageUpload) Size() int64 {
	return int64(len(i.Data))
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64
}
