package content

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// URLSigner issues time-limited read URLs for stored objects
type URLSigner interface {
	GetDownloadURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// BlobStore defines the interface for storage backends
type BlobStore interface {
	URLSigner

	// Upload stores the reader's bytes under params.ObjectKey
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download returns the stored bytes; ErrObjectNotFound if missing
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object; ErrObjectNotFound if the backend can tell it was missing
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object; ErrObjectNotFound if missing
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// List calls fn for every object whose key starts with prefix
	List(ctx context.Context, prefix string, fn func(ObjectMeta) error) error
}

// Repository defines the interface for record persistence.
// Every method is atomic on a single row.
type Repository interface {
	// Insert assigns ID, CreatedAt and UpdatedAt and stores the record
	Insert(ctx context.Context, rec NewRecord) (*Record, error)

	// Get returns ErrNotFound when the id is unknown
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// List returns all records, newest CreatedAt first
	List(ctx context.Context) ([]*Record, error)

	// Update applies patch and returns the updated record together with the
	// image key the row held before the update
	Update(ctx context.Context, id uuid.UUID, patch RecordPatch) (*Record, *string, error)

	// Delete removes the row and returns it as it was
	Delete(ctx context.Context, id uuid.UUID) (*Record, error)

	// ListImageKeys returns every non-null image key currently referenced
	ListImageKeys(ctx context.Context) ([]string, error)
}
