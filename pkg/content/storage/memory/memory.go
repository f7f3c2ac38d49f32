package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/content-records/pkg/content"
	"github.com/tendant/content-records/pkg/content/presigned"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the content.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	signer  *presigned.Signer
	now     func() time.Time
}

// Option configures the memory backend
type Option func(*Backend)

// WithSigner makes GetDownloadURL return URLs served by presigned.Handler
func WithSigner(signer *presigned.Signer) Option {
	return func(b *Backend) {
		b.signer = signer
	}
}

// WithClock overrides the modification time source
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects: make(map[string]object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upload stores the reader's contents under params.ObjectKey
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params content.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{data: data, contentType: mimeType, updatedAt: b.now()}
	return nil
}

// Download returns the stored bytes
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, content.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return content.ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// GetDownloadURL signs a read URL. Without a signer it returns a memory://
// URL carrying only the expiry, which is enough for tests.
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if b.signer != nil {
		return b.signer.DownloadURL(objectKey, ttl)
	}
	u := url.URL{
		Scheme:   "memory",
		Path:     "/" + objectKey,
		RawQuery: url.Values{"expires": {fmt.Sprint(b.now().Add(ttl).Unix())}}.Encode(),
	}
	return u.String(), nil
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*content.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, content.ErrObjectNotFound
	}

	return obj.meta(objectKey), nil
}

// List calls fn for every key under prefix in lexical order
func (b *Backend) List(ctx context.Context, prefix string, fn func(content.ObjectMeta) error) error {
	b.mu.RLock()
	metas := make([]content.ObjectMeta, 0, len(b.objects))
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			metas = append(metas, *obj.meta(key))
		}
	}
	b.mu.RUnlock()

	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns all stored keys, sorted
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o object) meta(key string) *content.ObjectMeta {
	return &content.ObjectMeta{
		Key:         key,
		Size:        int64(len(o.data)),
		ContentType: o.contentType,
		UpdatedAt:   o.updatedAt,
	}
}
