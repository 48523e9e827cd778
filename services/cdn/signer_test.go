package cdnsvc

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func newTestSigner(t *testing.T, now time.Time) *HMACSigner {
	s, err := NewHMACSigner(core.CDNConfig{BaseURL: "https://cdn.test.cd/", SigningKey: "k3y", URLTTL: time.Hour})
	require.NoError(t, err)
	s.nowFunc = func() time.Time { return now }
	return s
}

func TestHMACSigner_SignVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(t, now)

	signed, err := s.Sign("videos/intro.mp4")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), signed.ExpiresAt)

	u, err := url.Parse(signed.URL)
	require.NoError(t, err)
	assert.Equal(t, "cdn.test.cd", u.Host)
	assert.Equal(t, "/videos/intro.mp4", u.Path)

	token, expires := u.Query().Get("token"), u.Query().Get("expires")
	assert.NoError(t, s.Verify("/videos/intro.mp4", token, expires, now.Add(59*time.Minute)))
	assert.Equal(t, ErrExpired, s.Verify("/videos/intro.mp4", token, expires, now.Add(time.Hour)))
	assert.Equal(t, ErrInvalidSignature, s.Verify("/videos/other.mp4", token, expires, now))
	assert.Equal(t, ErrInvalidSignature, s.Verify("/videos/intro.mp4", token, "1", now))
	assert.Equal(t, ErrInvalidSignature, s.Verify("/videos/intro.mp4", token, "soon", now))

	other, err := NewHMACSigner(core.CDNConfig{BaseURL: "https://cdn.test.cd", SigningKey: "other"})
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidSignature, other.Verify("/videos/intro.mp4", token, expires, now))
}

func TestHMACSigner_Sign_emptyPath(t *testing.T) {
	s := newTestSigner(t, time.Now())
	_, err := s.Sign("")
	assert.Error(t, err)
}

func TestNewHMACSigner(t *testing.T) {
	assert.Panics(t, func() { _, _ = NewHMACSigner(core.CDNConfig{BaseURL: "https://cdn.test.cd"}) })
}
