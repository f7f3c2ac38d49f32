package urlcache

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-records/pkg/content"
	"github.com/tendant/content-records/pkg/content/storage/memory"
)

type countingStore struct {
	*memory.Backend
	signs int
}

func (c *countingStore) GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	c.signs++
	return fmt.Sprintf("https://signed.test/%s?n=%d", key, c.signs), nil
}

func TestStore_CachesAndForgets(t *testing.T) {
	inner := &countingStore{Backend: memory.New()}
	store := New(inner, 16, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, strings.NewReader("x"), content.UploadParams{ObjectKey: "images/a"}))

	first, err := store.GetDownloadURL(ctx, "images/a", time.Hour)
	require.NoError(t, err)
	second, err := store.GetDownloadURL(ctx, "images/a", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.signs)
	assert.Equal(t, 1, store.Len())

	// other TTLs are not cached
	_, err = store.GetDownloadURL(ctx, "images/a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.signs)

	require.NoError(t, store.Delete(ctx, "images/a"))
	assert.Equal(t, 0, store.Len())

	third, err := store.GetDownloadURL(ctx, "images/a", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestStore_Expires(t *testing.T) {
	inner := &countingStore{Backend: memory.New()}
	store := New(inner, 16, 40*time.Millisecond)
	ctx := context.Background()

	_, err := store.GetDownloadURL(ctx, "k", 40*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	_, err = store.GetDownloadURL(ctx, "k", 40*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.signs)
}
