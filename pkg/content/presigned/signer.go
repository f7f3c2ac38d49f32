package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultRoutePrefix is the path under which signed blobs are served
const DefaultRoutePrefix = "/blobs"

// Signer generates and validates HMAC-signed read URLs for object keys
type Signer struct {
	secretKey         []byte
	defaultExpiration time.Duration
	baseURL           string
	routePrefix       string
	now               func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: 15 * time.Minute,
		routePrefix:       DefaultRoutePrefix,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignURL signs method and path and returns the path with signature and
// expires query parameters appended.
//
// Example:
//
//	url, err := signer.SignURL("GET", "/blobs/images/a.png", 15*time.Minute)
//	// Returns: /blobs/images/a.png?expires=1696789012&signature=abc123...
func (s *Signer) SignURL(method, path string, expiresIn time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	if expiresIn <= 0 {
		expiresIn = s.defaultExpiration
	}

	expiresAt := s.now().Add(expiresIn).Unix()
	signature := s.generateSignature(createPayload(method, path, expiresAt))

	return fmt.Sprintf("%s?expires=%d&signature=%s", escapePath(path), expiresAt, signature), nil
}

// DownloadURL returns an absolute (when a base URL is configured) signed GET
// URL for objectKey.
func (s *Signer) DownloadURL(objectKey string, expiresIn time.Duration) (string, error) {
	signed, err := s.SignURL(http.MethodGet, s.PathFor(objectKey), expiresIn)
	if err != nil {
		return "", err
	}
	return s.baseURL + signed, nil
}

// PathFor returns the unescaped request path serving objectKey
func (s *Signer) PathFor(objectKey string) string {
	return s.routePrefix + "/" + strings.TrimLeft(objectKey, "/")
}

// ValidateRequest checks the signature and expiration carried by r
func (s *Signer) ValidateRequest(r *http.Request) error {
	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	return s.Validate(r.Method, r.URL.Path, signature, expiresAt)
}

// Validate validates the signature and expiration for a given method, path, signature, and expiration timestamp
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if len(s.secretKey) == 0 {
		return ErrNoSecretKey
	}

	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(createPayload(method, path, expiresAt))

	// Constant-time comparison
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// ExtractObjectKey returns the object key addressed by an unescaped request path
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	prefix := s.routePrefix + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", ErrKeyMismatch
	}

	key := strings.TrimPrefix(path, prefix)
	if key == "" {
		return "", ErrKeyMismatch
	}
	return key, nil
}

// createPayload creates the signature payload: METHOD|PATH|EXPIRES
func createPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

// generateSignature generates HMAC-SHA256 signature for the given payload
func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
