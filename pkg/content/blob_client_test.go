package content_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-records/pkg/content"
	"github.com/tendant/content-records/pkg/content/objectkey"
	memorystorage "github.com/tendant/content-records/pkg/content/storage/memory"
)

func newBlobClient(opts ...content.BlobClientOption) (*content.BlobClient, *flakyStore) {
	store := &flakyStore{Backend: memorystorage.New()}
	return content.NewBlobClient(store, opts...), store
}

func TestBlobClient_Put(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient()

	img := jpeg(2048)
	key, err := client.Put(ctx, img.Data, img.ContentType, "My Photo.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, objectkey.DefaultPrefix+"/"))
	assert.True(t, strings.HasSuffix(key, "My_Photo.jpg"))

	meta, err := store.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), meta.Size)
	assert.Equal(t, "image/jpeg", meta.ContentType)

	other, err := client.Put(ctx, img.Data, img.ContentType, "My Photo.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestBlobClient_PutSniffsGenericType(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient()

	img := png(512)
	key, err := client.Put(ctx, img.Data, "application/octet-stream", "x.png")
	require.NoError(t, err)

	meta, err := store.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.ContentType)
}

func TestBlobClient_PutRejectsBeforeUpload(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient(content.WithLimits(content.Limits{
		MaxBytes:     1024,
		AllowedTypes: []string{"image/png"},
	}))

	tests := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{"empty", nil, "image/png"},
		{"too large", png(2048).Data, "image/png"},
		{"type not allowed", jpeg(512).Data, "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Put(ctx, tt.data, tt.contentType, "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, content.ErrPayloadRejected)
			assert.True(t, content.IsValidation(err))
		})
	}
	uploads, _ := store.counts()
	assert.Zero(t, uploads)
}

func TestBlobClient_PutStoreFailure(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient(content.WithBackendName("memory"))
	store.set(true, false, false)

	_, err := client.Put(ctx, jpeg(512).Data, "image/jpeg", "x.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errInjected)

	var serr *content.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "put", serr.Op)
	assert.Equal(t, "memory", serr.Backend)
	assert.Empty(t, store.Keys())
}

func TestBlobClient_CustomKeyGenerator(t *testing.T) {
	ctx := context.Background()
	gen := objectkey.NewCustomFuncGenerator(func(meta *objectkey.KeyMetadata) string {
		return "fixed/" + meta.FileName
	})
	client, _ := newBlobClient(content.WithKeyGenerator(gen))

	key, err := client.Put(ctx, jpeg(128).Data, "image/jpeg", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "fixed/a.jpg", key)
}

func TestBlobClient_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient()

	key, err := client.Put(ctx, jpeg(128).Data, "image/jpeg", "a.jpg")
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, key))
	require.NoError(t, client.Delete(ctx, key))
	require.NoError(t, client.Delete(ctx, ""))

	ok, err := client.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, deletes := store.counts()
	assert.Equal(t, 2, deletes)
}

func TestBlobClient_DeleteFailure(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient()
	store.set(false, true, false)

	err := client.Delete(ctx, "images/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrStoreUnavailable)
}

func TestBlobClient_SignedReadURL(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient()

	url, err := client.SignedReadURL(ctx, nil, time.Minute)
	assert.NoError(t, err)
	assert.Nil(t, url)

	url, err = client.SignedReadURL(ctx, strPtr(""), time.Minute)
	assert.NoError(t, err)
	assert.Nil(t, url)

	url, err = client.SignedReadURL(ctx, strPtr("images/a.jpg"), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, url)
	assert.Contains(t, *url, "images/a.jpg")

	store.set(false, false, true)
	_, err = client.SignedReadURL(ctx, strPtr("images/a.jpg"), time.Minute)
	assert.ErrorIs(t, err, content.ErrStoreUnavailable)
}

func TestBlobClient_List(t *testing.T) {
	ctx := context.Background()
	client, _ := newBlobClient()

	for i := 0; i < 3; i++ {
		_, err := client.Put(ctx, jpeg(64).Data, "image/jpeg", "a.jpg")
		require.NoError(t, err)
	}

	var keys []string
	err := client.List(ctx, objectkey.DefaultPrefix+"/", func(meta content.ObjectMeta) error {
		keys = append(keys, meta.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestLimits(t *testing.T) {
	limits := content.DefaultLimits()
	assert.Equal(t, content.DefaultMaxUploadBytes, limits.MaxBytes)
	assert.True(t, limits.Allows("image/jpeg"))
	assert.True(t, limits.Allows("IMAGE/PNG; charset=binary"))
	assert.False(t, limits.Allows("image/webp"))

	assert.NoError(t, limits.Check(1, "image/gif"))
	assert.Error(t, limits.Check(content.DefaultMaxUploadBytes+1, "image/gif"))
	assert.NoError(t, limits.Check(content.DefaultMaxUploadBytes, "image/gif"))
}

func TestResolveContentType(t *testing.T) {
	assert.Equal(t, "image/png", content.ResolveContentType("", png(64).Data))
	assert.Equal(t, "image/jpeg", content.ResolveContentType("application/octet-stream", jpeg(64).Data))
	assert.Equal(t, "image/png", content.ResolveContentType("Image/GIF", png(64).Data))
	assert.Equal(t, "image/jpeg", content.ResolveContentType("image/jpeg; q=1", jpeg(64).Data))
	assert.Equal(t, "text/plain", content.ResolveContentType("image/jpeg", []byte("just some text")))
	assert.Equal(t, "image/svg+xml", content.ResolveContentType("image/svg+xml", []byte("<svg/>")))
}

func TestBlobClient_PutRejectsMislabelledImage(t *testing.T) {
	ctx := context.Background()
	client, store := newBlobClient()

	_, err := client.Put(ctx, []byte("<html><body>not an image</body></html>"), "image/jpeg", "x.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrPayloadRejected)
	assert.Contains(t, err.Error(), "text/html")

	assert.Error(t, client.Check([]byte("plain text"), "image/png"))
	assert.NoError(t, client.Check(png(64).Data, "image/png"))

	uploads, _ := store.counts()
	assert.Zero(t, uploads)
}
