package content_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-records/pkg/content"
	"github.com/tendant/content-records/pkg/content/repo/memory"
	memorystorage "github.com/tendant/content-records/pkg/content/storage/memory"
)

var errInjected = errors.New("injected failure")

// flakyRepo wraps the memory repository with switchable failures
type flakyRepo struct {
	*memory.Repository
	mu          sync.Mutex
	failInsert  bool
	failUpdate  bool
	failDelete  bool
	afterUpdate func()
}

func (r *flakyRepo) set(insert, update, del bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInsert, r.failUpdate, r.failDelete = insert, update, del
}

func (r *flakyRepo) Insert(ctx context.Context, rec content.NewRecord) (*content.Record, error) {
	r.mu.Lock()
	fail := r.failInsert
	r.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return r.Repository.Insert(ctx, rec)
}

func (r *flakyRepo) Update(ctx context.Context, id uuid.UUID, patch content.RecordPatch) (*content.Record, *string, error) {
	r.mu.Lock()
	fail := r.failUpdate
	r.mu.Unlock()
	if fail {
		return nil, nil, errInjected
	}
	rec, prev, err := r.Repository.Update(ctx, id, patch)
	if r.afterUpdate != nil {
		r.afterUpdate()
	}
	return rec, prev, err
}

func (r *flakyRepo) Delete(ctx context.Context, id uuid.UUID) (*content.Record, error) {
	r.mu.Lock()
	fail := r.failDelete
	r.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return r.Repository.Delete(ctx, id)
}

// flakyStore wraps the memory backend with switchable failures and call counts
type flakyStore struct {
	*memorystorage.Backend
	mu         sync.Mutex
	failUpload bool
	failDelete bool
	failSign   bool
	uploads    int
	deletes    int
}

func (s *flakyStore) set(upload, del, sign bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpload, s.failDelete, s.failSign = upload, del, sign
}

func (s *flakyStore) Upload(ctx context.Context, r io.Reader, params content.UploadParams) error {
	s.mu.Lock()
	s.uploads++
	fail := s.failUpload
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.Backend.Upload(ctx, r, params)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes++
	fail := s.failDelete
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Backend.Delete(ctx, key)
}

func (s *flakyStore) GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	fail := s.failSign
	s.mu.Unlock()
	if fail {
		return "", errInjected
	}
	return s.Backend.GetDownloadURL(ctx, key, ttl)
}

func (s *flakyStore) counts() (uploads, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads, s.deletes
}

type fixture struct {
	svc   content.Service
	repo  *flakyRepo
	store *flakyStore
	blobs *content.BlobClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &flakyRepo{Repository: memory.New()}
	store := &flakyStore{Backend: memorystorage.New()}
	blobs := content.NewBlobClient(store, content.WithBackendName("memory"))
	svc, err := content.New(
		content.WithRepository(repo),
		content.WithBlobClient(blobs),
	)
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, store: store, blobs: blobs}
}

// assertNoDanglingReferences checks that every referenced key is stored.
func (f *fixture) assertNoDanglingReferences(t *testing.T) {
	t.Helper()
	keys, err := f.repo.ListImageKeys(context.Background())
	require.NoError(t, err)
	for _, key := range keys {
		ok, err := f.blobs.Exists(context.Background(), key)
		require.NoError(t, err)
		require.True(t, ok, "record references missing blob %s", key)
	}
}

func jpeg(size int) *content.ImageUpload {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return &content.ImageUpload{Data: data, ContentType: "image/jpeg", FileName: "photo.jpg"}
}

func png(size int) *content.ImageUpload {
	data := make([]byte, size)
	copy(data, []byte("\x89PNG\r\n\x1a\n"))
	return &content.ImageUpload{Data: data, ContentType: "image/png", FileName: "photo.png"}
}

func strPtr(s string) *string {
	return &s
}
