package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-records/pkg/content"
	"github.com/tendant/content-records/pkg/content/storage/memory"
)

type staticKeys []string

func (k staticKeys) ListImageKeys(ctx context.Context) ([]string, error) {
	return k, nil
}

type failingDeletes struct {
	*memory.Backend
	fail map[string]bool
}

func (f *failingDeletes) Delete(ctx context.Context, key string) error {
	if f.fail[key] {
		return errors.New("access denied")
	}
	return f.Backend.Delete(ctx, key)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, store *memory.Backend, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, store.Upload(context.Background(), strings.NewReader("x"), content.UploadParams{ObjectKey: k}))
	}
}

func TestSweeper_DeletesOldOrphansOnly(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	store := memory.New(memory.WithClock(func() time.Time { return clock }))

	clock = now.Add(-2 * time.Hour)
	seed(t, store, "images/old-orphan", "images/old-referenced")
	clock = now.Add(-10 * time.Minute)
	seed(t, store, "images/fresh-orphan")
	seed(t, store, "other/outside-prefix")

	sweeper := New(store, staticKeys{"images/old-referenced"},
		WithPrefix("images/"),
		WithGrace(time.Hour),
		WithClock(func() time.Time { return now }),
		WithLogger(quietLogger()),
	)

	result, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Orphans)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	assert.Equal(t, []string{"images/fresh-orphan", "images/old-referenced", "other/outside-prefix"}, store.Keys())
}

func TestSweeper_WithBlobClient(t *testing.T) {
	store := memory.New(memory.WithClock(func() time.Time { return time.Now().Add(-2 * DefaultGrace) }))
	seed(t, store, "images/a", "images/b")

	client := content.NewBlobClient(store, content.WithBlobLogger(quietLogger()))
	sweeper := New(client, staticKeys{"images/b"}, WithPrefix("images/"), WithLogger(quietLogger()))

	result, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"images/b"}, store.Keys())
}

func TestSweeper_CountsDeleteErrors(t *testing.T) {
	inner := memory.New(memory.WithClock(func() time.Time { return time.Now().Add(-2 * DefaultGrace) }))
	seed(t, inner, "a", "b", "c")
	store := &failingDeletes{Backend: inner, fail: map[string]bool{"b": true}}

	sweeper := New(store, staticKeys{}, WithConcurrency(2), WithLogger(quietLogger()))
	result, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []string{"b"}, inner.Keys())
}

type countingKeys struct {
	mu    sync.Mutex
	calls int
}

func (c *countingKeys) ListImageKeys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil, nil
}

func (c *countingKeys) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSweeper_StartStop(t *testing.T) {
	keys := &countingKeys{}
	sweeper := New(memory.New(), keys, WithInterval(10*time.Millisecond), WithLogger(quietLogger()))

	sweeper.Start(context.Background())
	assert.Eventually(t, func() bool { return keys.count() >= 2 }, time.Second, 5*time.Millisecond)
	sweeper.Stop()

	stopped := keys.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, keys.count())

	// Stop is safe to repeat
	sweeper.Stop()
}

func TestSweeper_ZeroIntervalDoesNotStart(t *testing.T) {
	keys := &countingKeys{}
	sweeper := New(memory.New(), keys, WithInterval(0), WithLogger(quietLogger()))
	sweeper.Start(context.Background())
	sweeper.Stop()
	assert.Equal(t, 0, keys.count())
}
