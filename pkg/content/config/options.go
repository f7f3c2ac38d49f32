package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL selects the repository: "memory" or a postgres URL
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = url
		return nil
	}
}

// WithMemoryStorage selects the in-memory blob store
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageBackend = "memory"
		return nil
	}
}

// WithFilesystemStorage selects the filesystem blob store rooted at dir
func WithFilesystemStorage(dir string) Option {
	return func(c *ServerConfig) error {
		if dir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageBackend = "fs"
		c.FSBaseDir = dir
		return nil
	}
}

// WithS3Storage selects the S3 blob store
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		c.StorageBackend = "s3"
		c.S3Bucket = bucket
		if region != "" {
			c.S3Region = region
		}
		return nil
	}
}

// WithURLSigning sets the HMAC secret and public base URL for fs/memory blob URLs
func WithURLSigning(secret, publicBaseURL string) Option {
	return func(c *ServerConfig) error {
		c.URLSigningSecret = secret
		c.PublicBaseURL = publicBaseURL
		return nil
	}
}

// WithSignedURLTTL sets the image URL lifetime
func WithSignedURLTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.SignedURLTTL = ttl
		return nil
	}
}

// WithUploadLimits sets the maximum image size and accepted content types
func WithUploadLimits(maxBytes int64, types ...string) Option {
	return func(c *ServerConfig) error {
		c.MaxUploadBytes = maxBytes
		if len(types) > 0 {
			c.AllowedMIMETypes = types
		}
		return nil
	}
}

// WithURLCacheSize sets the signed URL cache size; 0 disables the cache
func WithURLCacheSize(n int) Option {
	return func(c *ServerConfig) error {
		c.URLCacheSize = n
		return nil
	}
}

// WithSweeper enables the orphan sweeper
func WithSweeper(interval, grace time.Duration) Option {
	return func(c *ServerConfig) error {
		c.SweepInterval = interval
		c.SweepGrace = grace
		return nil
	}
}
