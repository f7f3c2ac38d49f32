// Package reconcile removes orphan blobs: stored objects that no record
// references. It runs off the request path on a ticker.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/content-records/pkg/content"
)

// DefaultGrace is how old an unreferenced blob must be before it is deleted
const DefaultGrace = time.Hour

const defaultConcurrency = 4

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_sweep_runs_total",
		Help: "Orphan sweep runs.",
	})
	sweepOrphansDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_sweep_orphans_deleted_total",
		Help: "Orphan blobs deleted by the sweeper.",
	})
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "content_sweep_errors_total",
		Help: "Errors encountered while sweeping.",
	})
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "content_sweep_duration_seconds",
		Help:    "Orphan sweep duration in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Blobs lists and deletes stored objects. *content.BlobClient satisfies it.
type Blobs interface {
	List(ctx context.Context, prefix string, fn func(content.ObjectMeta) error) error
	Delete(ctx context.Context, key string) error
}

// KeySource reports which keys are referenced. content.Repository satisfies it.
type KeySource interface {
	ListImageKeys(ctx context.Context) ([]string, error)
}

// Result summarizes one sweep
type Result struct {
	Scanned  int
	Orphans  int
	Deleted  int
	Skipped  int // unreferenced but younger than the grace period
	Errors   int
	Duration time.Duration
}

// Sweeper deletes unreferenced blobs older than a grace period
type Sweeper struct {
	blobs       Blobs
	keys        KeySource
	prefix      string
	grace       time.Duration
	interval    time.Duration
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithPrefix restricts the sweep to keys under prefix
func WithPrefix(prefix string) Option {
	return func(s *Sweeper) { s.prefix = prefix }
}

// WithGrace sets the minimum age of a blob before it may be deleted
func WithGrace(d time.Duration) Option {
	return func(s *Sweeper) { s.grace = d }
}

// WithInterval sets the ticker interval used by Start
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithConcurrency bounds parallel deletes
func WithConcurrency(n int) Option {
	return func(s *Sweeper) { s.concurrency = n }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// New creates a sweeper over blobs and keys
func New(blobs Blobs, keys KeySource, opts ...Option) *Sweeper {
	s := &Sweeper{
		blobs:       blobs,
		keys:        keys,
		grace:       DefaultGrace,
		interval:    time.Hour,
		concurrency: defaultConcurrency,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	s.logger = s.logger.With("component", "sweeper")
	return s
}

// RunOnce performs a single sweep. Blobs are listed before referenced keys
// are read, so a blob that becomes referenced during the sweep is always seen
// as referenced or is still inside the grace window.
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	start := s.now()
	result := &Result{}
	defer func() {
		result.Duration = s.now().Sub(start)
		sweepRunsTotal.Inc()
		sweepDurationSeconds.Observe(result.Duration.Seconds())
	}()

	type candidate struct {
		key       string
		updatedAt time.Time
	}
	var candidates []candidate
	err := s.blobs.List(ctx, s.prefix, func(m content.ObjectMeta) error {
		result.Scanned++
		candidates = append(candidates, candidate{key: m.Key, updatedAt: m.UpdatedAt})
		return nil
	})
	if err != nil {
		sweepErrorsTotal.Inc()
		return result, err
	}

	referenced, err := s.keys.ListImageKeys(ctx)
	if err != nil {
		sweepErrorsTotal.Inc()
		return result, err
	}
	refs := make(map[string]struct{}, len(referenced))
	for _, k := range referenced {
		refs[k] = struct{}{}
	}

	cutoff := start.Add(-s.grace)
	var deleted, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range candidates {
		if _, ok := refs[c.key]; ok {
			continue
		}
		result.Orphans++
		if c.updatedAt.After(cutoff) {
			result.Skipped++
			continue
		}
		g.Go(func() error {
			if err := s.blobs.Delete(gctx, c.key); err != nil {
				failed.Add(1)
				s.logger.WarnContext(gctx, "failed to delete orphan blob", "key", c.key, "err", err)
				return nil
			}
			deleted.Add(1)
			s.logger.DebugContext(gctx, "orphan blob deleted", "key", c.key)
			return nil
		})
	}
	_ = g.Wait()

	result.Deleted = int(deleted.Load())
	result.Errors = int(failed.Load())
	sweepOrphansDeletedTotal.Add(float64(result.Deleted))
	sweepErrorsTotal.Add(float64(result.Errors))

	s.logger.InfoContext(ctx, "sweep finished",
		"scanned", result.Scanned,
		"orphans", result.Orphans,
		"deleted", result.Deleted,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)
	return result, nil
}

// Start runs a sweep immediately and then on every interval until Stop or
// ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	s.logger.Info("sweeper started", "interval", s.interval, "grace", s.grace, "prefix", s.prefix)
}

// Stop cancels the background loop and waits for the current sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "sweep failed", "err", err)
	}
}
