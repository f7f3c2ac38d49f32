package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/content-records/pkg/content"
)

// DefaultTimeout bounds each query
const DefaultTimeout = 5 * time.Second

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements content.Repository using PostgreSQL
type Repository struct {
	db      DBTX
	timeout time.Duration
}

// New creates a new PostgreSQL repository
func New(db DBTX, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return New(pool, DefaultTimeout)
}

// Connect opens a pool and checks connectivity
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

const recordColumns = `id, name, message, info, NULLIF(image_key, ''), created_at, updated_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return content.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: duplicate entry on %s", content.ErrPersistenceFailed, pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("%w: constraint %s violated", content.ErrPersistenceFailed, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: required field %s is missing", content.ErrPersistenceFailed, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%w: table does not exist - database migration required", content.ErrPersistenceFailed)
		default:
			return fmt.Errorf("%w: database error in %s: %s (code: %s)", content.ErrPersistenceFailed, operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("%w: database error in %s: %w", content.ErrPersistenceFailed, operation, err)
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository) Insert(ctx context.Context, rec content.NewRecord) (*content.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO content_records (id, name, message, info, image_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
		RETURNING ` + recordColumns

	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, query, uuid.New(), rec.Name, rec.Message, rec.Info, rec.ImageKey, now)

	out, err := scanRecord(row)
	if err != nil {
		return nil, r.handlePostgresError("insert record", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*content.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM content_records WHERE id = $1`

	out, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get record", err)
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context) ([]*content.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM content_records ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list records", err)
	}
	defer rows.Close()

	records := make([]*content.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, r.handlePostgresError("list records", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list records", err)
	}
	return records, nil
}

// Update locks the row, applies patch and returns the key it replaced.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch content.RecordPatch) (*content.Record, *string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		WITH prev AS (
			SELECT id, image_key FROM content_records WHERE id = $1 FOR UPDATE
		)
		UPDATE content_records c SET
			name       = COALESCE($2::text, c.name),
			message    = COALESCE($3::text, c.message),
			info       = COALESCE($4::text, c.info),
			image_key  = CASE WHEN $5::boolean THEN NULLIF($6::text, '') ELSE c.image_key END,
			updated_at = $7
		FROM prev
		WHERE c.id = prev.id
		RETURNING c.id, c.name, c.message, c.info, NULLIF(c.image_key, ''), c.created_at, c.updated_at,
			NULLIF(prev.image_key, '')`

	var rec content.Record
	var previous *string
	err := r.db.QueryRow(ctx, query,
		id, patch.Name, patch.Message, patch.Info, patch.SetImageKey, patch.ImageKey, time.Now().UTC(),
	).Scan(&rec.ID, &rec.Name, &rec.Message, &rec.Info, &rec.ImageKey, &rec.CreatedAt, &rec.UpdatedAt, &previous)
	if err != nil {
		return nil, nil, r.handlePostgresError("update record", err)
	}
	return &rec, previous, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*content.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM content_records WHERE id = $1 RETURNING ` + recordColumns

	out, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("delete record", err)
	}
	return out, nil
}

func (r *Repository) ListImageKeys(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT image_key FROM content_records WHERE image_key IS NOT NULL AND image_key <> ''`)
	if err != nil {
		return nil, r.handlePostgresError("list image keys", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, r.handlePostgresError("list image keys", err)
	}
	return keys, nil
}

// Ping reports whether the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return r.handlePostgresError("ping", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*content.Record, error) {
	var rec content.Record
	err := row.Scan(&rec.ID, &rec.Name, &rec.Message, &rec.Info, &rec.ImageKey, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
