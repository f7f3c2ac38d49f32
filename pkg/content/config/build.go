package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/content-records/pkg/content"
	"github.com/tendant/content-records/pkg/content/objectkey"
	"github.com/tendant/content-records/pkg/content/presigned"
	"github.com/tendant/content-records/pkg/content/reconcile"
	"github.com/tendant/content-records/pkg/content/repo/memory"
	repopg "github.com/tendant/content-records/pkg/content/repo/postgres"
	fsstorage "github.com/tendant/content-records/pkg/content/storage/fs"
	memorystorage "github.com/tendant/content-records/pkg/content/storage/memory"
	s3storage "github.com/tendant/content-records/pkg/content/storage/s3"
	"github.com/tendant/content-records/pkg/content/urlcache"
)

// Runtime holds everything Build wires together
type Runtime struct {
	Service    content.Service
	Repository content.Repository
	Blobs      *content.BlobClient

	// Signer and BlobSource are set for the fs and memory backends, whose
	// URLs are served by presigned.Handler.
	Signer     *presigned.Signer
	BlobSource presigned.Source

	// Sweeper is nil when SWEEP_INTERVAL is zero
	Sweeper *reconcile.Sweeper

	pool *pgxpool.Pool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ready reports whether the record store is reachable. Repositories without a
// Ping method are always ready.
func (rt *Runtime) Ready(ctx context.Context) error {
	p, ok := rt.Repository.(pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Close stops the sweeper and releases the database pool
func (rt *Runtime) Close() {
	if rt.Sweeper != nil {
		rt.Sweeper.Stop()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// Build constructs the repository, blob store, service and sweeper described by the config
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	repo, err := c.buildRepository(ctx, rt, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo

	store, err := c.buildStorageBackend(ctx, rt, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageBackend, err)
	}

	if c.URLCacheSize > 0 {
		store = urlcache.New(store, c.URLCacheSize, c.SignedURLTTL)
	}

	rt.Blobs = content.NewBlobClient(store,
		content.WithBackendName(c.StorageBackend),
		content.WithKeyGenerator(objectkey.NewTimePrefixedGenerator(c.ObjectKeyPrefix)),
		content.WithLimits(c.Limits()),
		content.WithStoreTimeout(c.StoreTimeout),
		content.WithBlobLogger(logger),
	)

	svc, err := content.New(
		content.WithRepository(repo),
		content.WithBlobClient(rt.Blobs),
		content.WithURLTTL(c.SignedURLTTL),
		content.WithCleanupTimeout(c.StoreTimeout),
		content.WithLogger(logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc

	if c.SweepInterval > 0 {
		rt.Sweeper = reconcile.New(rt.Blobs, repo,
			reconcile.WithPrefix(c.ObjectKeyPrefix+"/"),
			reconcile.WithGrace(c.SweepGrace),
			reconcile.WithInterval(c.SweepInterval),
			reconcile.WithLogger(logger),
		)
	}

	return rt, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime, logger *slog.Logger) (content.Repository, error) {
	if !c.IsPostgres() {
		return memory.New(), nil
	}

	if c.DBAutoMigrate {
		if err := repopg.Migrate(c.DatabaseURL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := repopg.Connect(ctx, c.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	return repopg.New(pool, c.DBTimeout), nil
}

func (c *ServerConfig) buildStorageBackend(ctx context.Context, rt *Runtime, logger *slog.Logger) (content.BlobStore, error) {
	switch c.StorageBackend {
	case "s3":
		backend, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			EnableSSE:              c.S3SSEAlgorithm != "",
			SSEAlgorithm:           c.S3SSEAlgorithm,
			SSEKMSKeyID:            c.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "fs", "memory":
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	secret := c.URLSigningSecret
	if secret == "" {
		var err error
		if secret, err = randomSecret(); err != nil {
			return nil, err
		}
		logger.Warn("URL_SIGNING_SECRET not set, using a random secret; image URLs will not survive a restart")
	}
	rt.Signer = presigned.New(
		presigned.WithSecretKey(secret),
		presigned.WithBaseURL(c.PublicBaseURL),
		presigned.WithDefaultExpiration(c.SignedURLTTL),
	)

	if c.StorageBackend == "fs" {
		backend, err := fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir, Signer: rt.Signer})
		if err != nil {
			return nil, err
		}
		rt.BlobSource = backend
		return backend, nil
	}

	backend := memorystorage.New(memorystorage.WithSigner(rt.Signer))
	rt.BlobSource = backend
	return backend, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(errors.New("failed to generate url signing secret"), err)
	}
	return hex.EncodeToString(b), nil
}
