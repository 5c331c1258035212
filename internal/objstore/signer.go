package objstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// URLSigner issues and verifies time-limited signed download URLs. Signed URLs
// are the only supported read mechanism for client-initiated attachment access.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewURLSigner returns a signer using the given secret and URL lifetime.
func NewURLSigner(secret string, ttl time.Duration) (*URLSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("objstore: signing secret is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &URLSigner{secret: []byte(secret), ttl: ttl}, nil
}

func (s *URLSigner) signature(path string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(path))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedURL returns a relative download URL for path, valid until now+ttl.
func (s *URLSigner) SignedURL(path string, now time.Time) string {
	exp := now.Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.signature(path, exp))
	return "/files/" + path + "?" + q.Encode()
}

// Verify checks the signature and expiry for a download request.
func (s *URLSigner) Verify(path, expStr, sig string, now time.Time) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return fmt.Errorf("objstore: invalid expiry")
	}
	if now.Unix() > exp {
		return fmt.Errorf("objstore: url expired")
	}
	want := s.signature(path, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return fmt.Errorf("objstore: invalid signature")
	}
	return nil
}
