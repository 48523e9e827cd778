// Package cdnsvc signs the URLs private course assets are delivered through.
package cdnsvc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("signed URL has expired")
)

// HMACSigner issues URLs of the form `<base><path>?expires=<unix>&token=<sig>` where
// sig = base64url(HMAC-SHA256(key, path + "\n" + expires)).
type HMACSigner struct {
	baseURL *url.URL
	key     []byte
	ttl     time.Duration
	nowFunc func() time.Time // mockable
}

var _ core.URLSigner = (*HMACSigner)(nil)

func NewHMACSigner(conf core.CDNConfig) (*HMACSigner, error) {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.BaseURL, "conf.BaseURL"),
		vala.StringNotEmpty(conf.SigningKey, "conf.SigningKey"),
	).CheckAndPanic()

	base, err := url.Parse(strings.TrimSuffix(conf.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing CDN base URL")
	}
	ttl := conf.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &HMACSigner{baseURL: base, key: []byte(conf.SigningKey), ttl: ttl, nowFunc: time.Now}, nil
}

func (s *HMACSigner) signature(path string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	_, _ = mac.Write([]byte(path))
	_, _ = mac.Write([]byte{'\n'})
	_, _ = mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign returns a URL granting access to path until the signer's TTL elapses.
func (s *HMACSigner) Sign(path string) (core.SignedURL, error) {
	if path == "" {
		return core.SignedURL{}, errors.New("signing an empty path")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	expiresAt := s.nowFunc().UTC().Add(s.ttl).Truncate(time.Second)
	expires := expiresAt.Unix()

	u := *s.baseURL
	u.Path = s.baseURL.Path + path
	q := make(url.Values)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("token", s.signature(path, expires))
	u.RawQuery = q.Encode()

	return core.SignedURL{URL: u.String(), ExpiresAt: expiresAt}, nil
}

// Verify checks a token issued by Sign for path.
func (s *HMACSigner) Verify(path, token, expires string, now time.Time) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	expected := s.signature(path, exp)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidSignature
	}
	if !now.Before(time.Unix(exp, 0)) {
		return ErrExpired
	}
	return nil
}
