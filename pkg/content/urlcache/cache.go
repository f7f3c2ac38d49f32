// Package urlcache caches signed read URLs in front of a content.BlobStore.
// A URL is reused for half its lifetime, so any URL handed out stays valid
// for at least half the configured TTL.
package urlcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/content-records/pkg/content"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_url_cache_hits_total",
		Help: "Signed URL cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_url_cache_misses_total",
		Help: "Signed URL cache misses.",
	})
)

// Store wraps a BlobStore and caches GetDownloadURL results per object key.
// Delete evicts the key.
type Store struct {
	content.BlobStore
	cache  *expirable.LRU[string, string]
	urlTTL time.Duration
}

// New caches up to size URLs signed for urlTTL. Calls with any other TTL
// bypass the cache.
func New(store content.BlobStore, size int, urlTTL time.Duration) *Store {
	return &Store{
		BlobStore: store,
		cache:     expirable.NewLRU[string, string](size, nil, urlTTL/2),
		urlTTL:    urlTTL,
	}
}

func (s *Store) GetDownloadURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if ttl != s.urlTTL {
		return s.BlobStore.GetDownloadURL(ctx, objectKey, ttl)
	}

	if url, ok := s.cache.Get(objectKey); ok {
		cacheHitsTotal.Inc()
		return url, nil
	}
	cacheMissesTotal.Inc()

	url, err := s.BlobStore.GetDownloadURL(ctx, objectKey, ttl)
	if err != nil {
		return "", err
	}
	s.cache.Add(objectKey, url)
	return url, nil
}

func (s *Store) Delete(ctx context.Context, objectKey string) error {
	s.Forget(objectKey)
	return s.BlobStore.Delete(ctx, objectKey)
}

// Forget drops any cached URL for objectKey
func (s *Store) Forget(objectKey string) {
	s.cache.Remove(objectKey)
}

// Len returns the number of cached URLs
func (s *Store) Len() int {
	return s.cache.Len()
}
