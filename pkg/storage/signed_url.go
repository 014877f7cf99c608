package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner issues and verifies HMAC download tokens so export files
// can be fetched without resending credentials.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer from a shared secret and token lifetime.
func NewSignedURLSigner(secret string, ttl time.Duration) (*SignedURLSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("signed url secret is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}, nil
}

// Generate returns an opaque token granting time-limited access to jobID.
func (s *SignedURLSigner) Generate(jobID string) string {
	expires := time.Now().Add(s.ttl).Unix()
	payload := fmt.Sprintf("%s:%d", jobID, expires)
	sig := s.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + sig))
}

// Parse validates a token and returns the job ID it grants access to.
func (s *SignedURLSigner) Parse(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed download token")
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed download token")
	}
	jobID, expiresRaw, sig := parts[0], parts[1], parts[2]

	payload := jobID + ":" + expiresRaw
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return "", fmt.Errorf("invalid download token signature")
	}

	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed download token")
	}
	if time.Now().Unix() > expires {
		return "", fmt.Errorf("download token expired")
	}
	return jobID, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
