package content

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tendant/content-records/pkg/content/objectkey"
)

// DefaultStoreTimeout bounds each blob store call.
const DefaultStoreTimeout = 30 * time.Second

// BlobClient wraps a BlobStore with upload limits, key generation and
// per-call timeouts. It holds no state of its own.
type BlobClient struct {
	store   BlobStore
	backend string
	keys    objectkey.Generator
	limits  Limits
	timeout time.Duration
	logger  *slog.Logger
}

// BlobClientOption configures a BlobClient
type BlobClientOption func(*BlobClient)

// WithBackendName sets the backend name reported in errors and logs
func WithBackendName(name string) BlobClientOption {
	return func(c *BlobClient) {
		c.backend = name
	}
}

// WithKeyGenerator sets the object key generator
func WithKeyGenerator(gen objectkey.Generator) BlobClientOption {
	return func(c *BlobClient) {
		c.keys = gen
	}
}

// WithLimits sets the accepted image types and size
func WithLimits(limits Limits) BlobClientOption {
	return func(c *BlobClient) {
		c.limits = limits
	}
}

// WithStoreTimeout sets the timeout applied to every store call. Zero disables it.
func WithStoreTimeout(d time.Duration) BlobClientOption {
	return func(c *BlobClient) {
		c.timeout = d
	}
}

// WithBlobLogger sets the logger
func WithBlobLogger(logger *slog.Logger) BlobClientOption {
	return func(c *BlobClient) {
		c.logger = logger
	}
}

// NewBlobClient creates a client over store.
func NewBlobClient(store BlobStore, opts ...BlobClientOption) *BlobClient {
	c := &BlobClient{
		store:   store,
		backend: "default",
		keys:    objectkey.NewTimePrefixedGenerator(objectkey.DefaultPrefix),
		limits:  DefaultLimits(),
		timeout: DefaultStoreTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "blob_client", "backend", c.backend)
	return c
}

// Limits returns the configured upload limits.
func (c *BlobClient) Limits() Limits {
	return c.limits
}

// Check validates an image against the limits without touching the store.
func (c *BlobClient) Check(data []byte, contentType string) error {
	return c.limits.Check(int64(len(data)), ResolveContentType(contentType, data))
}

// Put validates the payload, stores it under a fresh key and returns the key.
func (c *BlobClient) Put(ctx context.Context, data []byte, contentType, originalName string) (string, error) {
	contentType = ResolveContentType(contentType, data)
	if err := c.limits.Check(int64(len(data)), contentType); err != nil {
		return "", err
	}

	key := c.keys.GenerateKey(&objectkey.KeyMetadata{
		FileName:    originalName,
		ContentType: contentType,
	})

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.store.Upload(ctx, bytes.NewReader(data), UploadParams{
		ObjectKey: key,
		MimeType:  contentType,
		Size:      int64(len(data)),
	})
	if err != nil {
		return "", c.storageError("put", key, err)
	}

	c.logger.DebugContext(ctx, "blob stored", "key", key, "size", len(data), "content_type", contentType)
	return key, nil
}

// Delete removes key from the store. A missing object is not an error.
func (c *BlobClient) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.store.Delete(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		c.logger.DebugContext(ctx, "blob already absent", "key", key)
		return nil
	}
	if err != nil {
		return c.storageError("delete", key, err)
	}
	return nil
}

// SignedReadURL returns a time-limited read URL for key, or nil when the
// record has no image.
func (c *BlobClient) SignedReadURL(ctx context.Context, key *string, ttl time.Duration) (*string, error) {
	key = NormalizeImageKey(key)
	if key == nil {
		return nil, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	url, err := c.store.GetDownloadURL(ctx, *key, ttl)
	if err != nil {
		return nil, c.storageError("sign", *key, err)
	}
	return &url, nil
}

// Exists reports whether key is present in the store.
func (c *BlobClient) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.store.GetObjectMeta(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, c.storageError("stat", key, err)
	}
	return true, nil
}

// List calls fn for every stored object under prefix.
func (c *BlobClient) List(ctx context.Context, prefix string, fn func(ObjectMeta) error) error {
	if err := c.store.List(ctx, prefix, fn); err != nil {
		return c.storageError("list", prefix, err)
	}
	return nil
}

func (c *BlobClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *BlobClient) storageError(op, key string, err error) error {
	return &StorageError{Backend: c.backend, Key: key, Op: op, Err: err}
}
