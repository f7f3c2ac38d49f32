package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/content-records/pkg/content"
)

// Repository implements content.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*content.Record
	now     func() time.Time
}

// Option configures the repository
type Option func(*Repository)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New creates a new in-memory repository
func New(opts ...Option) *Repository {
	r := &Repository{
		records: make(map[uuid.UUID]*content.Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Insert(ctx context.Context, rec content.NewRecord) (*content.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	stored := &content.Record{
		ID:        uuid.New(),
		Name:      rec.Name,
		Message:   rec.Message,
		Info:      rec.Info,
		ImageKey:  copyKey(content.NormalizeImageKey(rec.ImageKey)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[stored.ID] = stored
	return clone(stored), nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*content.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, content.ErrNotFound
	}
	return clone(rec), nil
}

func (r *Repository) List(ctx context.Context) ([]*content.Record, error) {
	r.mu.RLock()
	result := make([]*content.Record, 0, len(r.records))
	for _, rec := range r.records {
		result = append(result, clone(rec))
	}
	r.mu.RUnlock()

	// Newest first, ties by id
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch content.RecordPatch) (*content.Record, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, nil, content.ErrNotFound
	}
	previous := copyKey(rec.ImageKey)

	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Message != nil {
		rec.Message = *patch.Message
	}
	if patch.Info != nil {
		rec.Info = *patch.Info
	}
	if patch.SetImageKey {
		rec.ImageKey = copyKey(content.NormalizeImageKey(patch.ImageKey))
	}
	rec.UpdatedAt = r.now().UTC()

	return clone(rec), previous, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*content.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, content.ErrNotFound
	}
	delete(r.records, id)
	return clone(rec), nil
}

func (r *Repository) ListImageKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		if rec.ImageKey != nil && *rec.ImageKey != "" {
			keys = append(keys, *rec.ImageKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored records
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Seed stores rec as-is, including an empty image key. Used to reproduce legacy rows.
func (r *Repository) Seed(rec content.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = clone(&rec)
}

func clone(rec *content.Record) *content.Record {
	c := *rec
	c.ImageKey = copyKey(rec.ImageKey)
	return &c
}

func copyKey(key *string) *string {
	if key == nil {
		return nil
	}
	k := *key
	return &k
}
