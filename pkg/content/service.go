package content

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the content record use cases
type Service interface {
	CreateContent(ctx context.Context, req CreateContentRequest) (*ContentView, error)
	GetContent(ctx context.Context, id uuid.UUID) (*ContentView, error)
	ListContent(ctx context.Context) ([]*ContentView, error)
	UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentView, error)
	DeleteContent(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

// CreateContentRequest contains parameters for creating a record
type CreateContentRequest struct {
	Name    string
	Message string
	Info    string
	Image   *ImageUpload
}

// UpdateContentRequest contains parameters for updating a record.
// Nil text fields keep their current value. Image replaces the current image;
// RemoveImage clears it. Setting both is rejected.
type UpdateContentRequest struct {
	ID          uuid.UUID
	Name        *string
	Message     *string
	Info        *string
	Image       *ImageUpload
	RemoveImage bool
}
