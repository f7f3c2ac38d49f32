package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-records/pkg/content"
)

func strPtr(s string) *string { return &s }

// newTestRepository connects to TEST_DATABASE_URL, migrates, and truncates the table.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, Migrate(dsn, slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE content_records`)
	require.NoError(t, err)

	return NewWithPool(pool)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/app?sslmode=disable", migrateURL("postgres://u:p@db:5432/app?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/app", migrateURL("postgresql://u@db/app"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	err := r.handlePostgresError("op", &pgconn.PgError{Code: "23514", ConstraintName: "content_records_image_key_not_empty"})
	assert.ErrorIs(t, err, content.ErrPersistenceFailed)
	assert.Contains(t, err.Error(), "content_records_image_key_not_empty")

	err = r.handlePostgresError("op", &pgconn.PgError{Code: "42P01"})
	assert.ErrorIs(t, err, content.ErrPersistenceFailed)
	assert.Contains(t, err.Error(), "migration required")

	cause := errors.New("connection reset")
	err = r.handlePostgresError("op", cause)
	assert.ErrorIs(t, err, content.ErrPersistenceFailed)
	assert.ErrorIs(t, err, cause)
}

func TestRepository_CRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Insert(ctx, content.NewRecord{Name: "Bo", ImageKey: strPtr("images/a.png")})
	require.NoError(t, err)
	assert.Equal(t, "", created.Message)
	require.NotNil(t, created.ImageKey)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "images/a.png", *got.ImageKey)

	updated, previous, err := repo.Update(ctx, created.ID, content.RecordPatch{
		Message:     strPtr("hello"),
		SetImageKey: true,
		ImageKey:    strPtr("images/b.png"),
	})
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "images/a.png", *previous)
	assert.Equal(t, "images/b.png", *updated.ImageKey)
	assert.Equal(t, "Bo", updated.Name)
	assert.Equal(t, "hello", updated.Message)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	keys, err := repo.ListImageKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"images/b.png"}, keys)

	cleared, previous, err := repo.Update(ctx, created.ID, content.RecordPatch{SetImageKey: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ImageKey)
	assert.Equal(t, "images/b.png", *previous)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, err = repo.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, _, err = repo.Update(ctx, uuid.New(), content.RecordPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestRepository_ListOrderAndLegacyEmptyKey(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.Insert(ctx, content.NewRecord{Name: "first", ImageKey: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, first.ImageKey)

	_, err = repo.Insert(ctx, content.NewRecord{Name: "second"})
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)
	assert.Equal(t, "first", list[1].Name)

	require.NoError(t, repo.Ping(ctx))
}
