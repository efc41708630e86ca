package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned once the token's expiry has passed.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadClaims identifies the invoice a token grants access to.
type DownloadClaims struct {
	BillID    string
	OwnerID   string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed invoice download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token of the form billID.ownerID.expiry.path.signature.
func (s *SignedURLSigner) Issue(billID, ownerID, relPath string) (string, time.Time, error) {
	if billID == "" || ownerID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("bill, owner and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	fields := []string{
		billID,
		ownerID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(relPath)),
	}
	fields = append(fields, s.sign(fields))
	return strings.Join(fields, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the embedded claims.
func (s *SignedURLSigner) Verify(token string) (*DownloadClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 5 {
		return nil, ErrInvalidToken
	}
	expected := s.sign(parts[:4])
	if !hmac.Equal([]byte(expected), []byte(parts[4])) {
		return nil, ErrInvalidToken
	}

	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &DownloadClaims{
		BillID:    parts[0],
		OwnerID:   parts[1],
		Path:      string(rawPath),
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
	}
	if s.now().After(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(fields []string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
