package presigned

import (
	"strings"
	"time"
)

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing.
// The key should be at least 32 bytes.
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithDefaultExpiration sets the expiration used when a caller passes zero
func WithDefaultExpiration(duration time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = duration
	}
}

// WithBaseURL sets the scheme and host prepended to signed paths,
// e.g. "http://localhost:8080". Empty yields relative URLs.
func WithBaseURL(base string) Option {
	return func(s *Signer) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithRoutePrefix sets the path under which signed blobs are served.
// Default is "/blobs".
func WithRoutePrefix(prefix string) Option {
	return func(s *Signer) {
		s.routePrefix = "/" + strings.Trim(prefix, "/")
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
