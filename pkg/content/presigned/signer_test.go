package presigned

import (
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSigner_DownloadURLRoundTrip(t *testing.T) {
	s := New(WithSecretKey(testSecret), WithBaseURL("http://localhost:8080/"))

	raw, err := s.DownloadURL("images/2024/01/02/1-abc-a b.png", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", u.Host)
	assert.Equal(t, "/blobs/images/2024/01/02/1-abc-a b.png", u.Path)
	assert.NotEmpty(t, u.Query().Get("signature"))
	assert.NotEmpty(t, u.Query().Get("expires"))

	req := httptest.NewRequest("GET", raw, nil)
	require.NoError(t, s.ValidateRequest(req))

	key, err := s.ExtractObjectKey(req.URL.Path)
	require.NoError(t, err)
	assert.Equal(t, "images/2024/01/02/1-abc-a b.png", key)
}

func TestSigner_NoSecret(t *testing.T) {
	s := New()
	_, err := s.DownloadURL("k", time.Minute)
	assert.ErrorIs(t, err, ErrNoSecretKey)
	assert.ErrorIs(t, s.Validate("GET", "/blobs/k", "x", time.Now().Add(time.Hour).Unix()), ErrNoSecretKey)
}

func TestSigner_Expired(t *testing.T) {
	now := time.Now()
	s := New(WithSecretKey(testSecret), WithClock(func() time.Time { return now }))

	raw, err := s.DownloadURL("k.png", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	err = s.ValidateRequest(httptest.NewRequest("GET", raw, nil))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSigner_Tampered(t *testing.T) {
	s := New(WithSecretKey(testSecret))
	raw, err := s.DownloadURL("a.png", time.Minute)
	require.NoError(t, err)

	u, _ := url.Parse(raw)
	u.Path = "/blobs/b.png"
	assert.ErrorIs(t, s.ValidateRequest(httptest.NewRequest("GET", u.String(), nil)), ErrInvalidSignature)

	other := New(WithSecretKey("another-secret-another-secret-xx"))
	assert.ErrorIs(t, other.ValidateRequest(httptest.NewRequest("GET", raw, nil)), ErrInvalidSignature)

	// signed for GET only
	assert.ErrorIs(t, s.ValidateRequest(httptest.NewRequest("DELETE", raw, nil)), ErrInvalidSignature)
}

func TestSigner_MissingParams(t *testing.T) {
	s := New(WithSecretKey(testSecret))

	tests := []struct {
		name   string
		target string
		want   error
	}{
		{"no signature", "/blobs/a?expires=1", ErrMissingSignature},
		{"no expires", "/blobs/a?signature=abc", ErrMissingExpiration},
		{"bad expires", "/blobs/a?signature=abc&expires=soon", ErrInvalidExpiration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateRequest(httptest.NewRequest("GET", tt.target, nil))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsAuthError(err))
		})
	}
}

func TestSigner_ExtractObjectKey(t *testing.T) {
	s := New(WithRoutePrefix("files/"))

	key, err := s.ExtractObjectKey("/files/a/b.png")
	require.NoError(t, err)
	assert.Equal(t, "a/b.png", key)

	_, err = s.ExtractObjectKey("/blobs/a.png")
	assert.ErrorIs(t, err, ErrKeyMismatch)

	_, err = s.ExtractObjectKey("/files/")
	assert.ErrorIs(t, err, ErrKeyMismatch)
}
