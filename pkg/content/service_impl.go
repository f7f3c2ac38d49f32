package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultURLTTL is the lifetime of signed read URLs
	DefaultURLTTL = 15 * time.Minute

	// DefaultCleanupTimeout bounds old-blob deletion after a committed mutation
	DefaultCleanupTimeout = 30 * time.Second

	defaultSignConcurrency = 8

	deletedMessage = "Content deleted successfully"
)

// service implements the Service interface
type service struct {
	repository      Repository
	blobs           *BlobClient
	urlTTL          time.Duration
	cleanupTimeout  time.Duration
	signConcurrency int
	logger          *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the record repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobClient sets the blob store client
func WithBlobClient(client *BlobClient) Option {
	return func(s *service) {
		s.blobs = client
	}
}

// WithURLTTL sets the lifetime of issued image URLs
func WithURLTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.urlTTL = ttl
	}
}

// WithCleanupTimeout sets the timeout for deleting dereferenced blobs
func WithCleanupTimeout(d time.Duration) Option {
	return func(s *service) {
		s.cleanupTimeout = d
	}
}

// WithSignConcurrency bounds parallel URL signing in ListContent
func WithSignConcurrency(n int) Option {
	return func(s *service) {
		s.signConcurrency = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		urlTTL:          DefaultURLTTL,
		cleanupTimeout:  DefaultCleanupTimeout,
		signConcurrency: defaultSignConcurrency,
		logger:          slog.Default(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob client is required")
	}
	if s.urlTTL <= 0 {
		return nil, fmt.Errorf("url ttl must be positive, got %s", s.urlTTL)
	}
	if s.signConcurrency < 1 {
		s.signConcurrency = 1
	}
	s.logger = s.logger.With("component", "content_service")

	return s, nil
}

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (*ContentView, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	var imageKey *string
	if req.Image != nil {
		key, err := s.blobs.Put(ctx, req.Image.Data, req.Image.ContentType, req.Image.FileName)
		if err != nil {
			return nil, s.uploadError(uuid.Nil, "create", err)
		}
		imageKey = &key
	}

	rec, err := s.repository.Insert(ctx, NewRecord{
		Name:     req.Name,
		Message:  req.Message,
		Info:     req.Info,
		ImageKey: imageKey,
	})
	if err != nil {
		if imageKey != nil {
			s.logger.WarnContext(ctx, "record insert failed, blob left orphaned", "key", *imageKey, "err", err)
		}
		return nil, &ContentError{Op: "create", Err: fmt.Errorf("%w: %w", ErrRecordCreateFailed, err)}
	}

	s.logger.InfoContext(ctx, "content created", "id", rec.ID, "has_image", rec.ImageKey != nil)
	return s.view(ctx, rec), nil
}

func (s *service) GetContent(ctx context.Context, id uuid.UUID) (*ContentView, error) {
	rec, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, s.repositoryError(id, "get", err)
	}
	return s.view(ctx, rec), nil
}

func (s *service) ListContent(ctx context.Context) ([]*ContentView, error) {
	records, err := s.repository.List(ctx)
	if err != nil {
		return nil, s.repositoryError(uuid.Nil, "list", err)
	}

	views := make([]*ContentView, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.signConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			views[i] = s.view(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *service) UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentView, error) {
	// A missing id is reported as not found whatever the payload holds.
	if _, err := s.repository.Get(ctx, req.ID); err != nil {
		return nil, s.repositoryError(req.ID, "update", err)
	}

	if err := validateUpdate(&req); err != nil {
		return nil, err
	}
	if req.Image != nil {
		if err := s.blobs.Check(req.Image.Data, req.Image.ContentType); err != nil {
			return nil, err
		}
	}

	patch := RecordPatch{
		Name:    req.Name,
		Message: req.Message,
		Info:    req.Info,
	}

	var newKey *string
	switch {
	case req.Image != nil:
		key, err := s.blobs.Put(ctx, req.Image.Data, req.Image.ContentType, req.Image.FileName)
		if err != nil {
			return nil, s.uploadError(req.ID, "update", err)
		}
		newKey = &key
		patch.SetImageKey = true
		patch.ImageKey = newKey
	case req.RemoveImage:
		patch.SetImageKey = true
	}

	rec, previous, err := s.repository.Update(ctx, req.ID, patch)
	if err != nil {
		if newKey != nil {
			s.logger.WarnContext(ctx, "record update failed, new blob left orphaned", "id", req.ID, "key", *newKey, "err", err)
		}
		return nil, s.repositoryError(req.ID, "update", err)
	}

	// The replaced blob goes only after the row no longer references it.
	previous = NormalizeImageKey(previous)
	if patch.SetImageKey && previous != nil && (newKey == nil || *previous != *newKey) {
		s.cleanup(ctx, req.ID, *previous)
	}

	s.logger.InfoContext(ctx, "content updated", "id", rec.ID, "image_replaced", patch.SetImageKey)
	return s.view(ctx, rec), nil
}

func (s *service) DeleteContent(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	if _, err := s.repository.Get(ctx, id); err != nil {
		return nil, s.repositoryError(id, "delete", err)
	}

	rec, err := s.repository.Delete(ctx, id)
	if err != nil {
		return nil, s.repositoryError(id, "delete", err)
	}

	if key := NormalizeImageKey(rec.ImageKey); key != nil {
		s.cleanup(ctx, id, *key)
	}

	s.logger.InfoContext(ctx, "content deleted", "id", id)
	return &DeleteResult{Message: deletedMessage, DeletedID: id}, nil
}

// view signs the record's image URL. Signing failures yield a nil URL.
func (s *service) view(ctx context.Context, rec *Record) *ContentView {
	rec = NormalizeRecord(rec)
	url, err := s.blobs.SignedReadURL(ctx, rec.ImageKey, s.urlTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to sign image url", "id", rec.ID, "key", *rec.ImageKey, "err", err)
		url = nil
	}
	return &ContentView{Record: *rec, ImageURL: url}
}

// cleanup deletes a dereferenced blob. Failures leave an orphan and are only logged.
func (s *service) cleanup(ctx context.Context, id uuid.UUID, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete dereferenced blob", "id", id, "key", key, "err", err)
		return
	}
	s.logger.DebugContext(ctx, "dereferenced blob deleted", "id", id, "key", key)
}

func (s *service) uploadError(id uuid.UUID, op string, err error) error {
	if IsValidation(err) {
		return err
	}
	return &ContentError{ID: id, Op: op, Err: fmt.Errorf("%w: %w", ErrImageUploadFailed, err)}
}

func (s *service) repositoryError(id uuid.UUID, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &ContentError{ID: id, Op: op, Err: err}
	}
	if errors.Is(err, ErrPersistenceFailed) {
		return &ContentError{ID: id, Op: op, Err: err}
	}
	return &ContentError{ID: id, Op: op, Err: fmt.Errorf("%w: %w", ErrPersistenceFailed, err)}
}
