package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

// Signer signs V4 URL payloads on behalf of a service account.
type Signer interface {
	// Email is used as the GoogleAccessID of signed URLs.
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// KeySigner signs media URLs with an RSA key held in memory.
type KeySigner struct {
	email string
	key   *rsa.PrivateKey
}

var _ Signer = (*KeySigner)(nil)

// ParseSigningKey reads the service account JSON key stored in ARCHIVE_STORAGE_SIGNING_KEY
// (usually a secret:// reference resolved at startup).
func ParseSigningKey(raw string) (*KeySigner, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("storage: signing key is empty")
	}

	var doc struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("storage: signing key is not a service account key: %w", err)
	}
	email := strings.TrimSpace(doc.ClientEmail)
	if email == "" {
		return nil, errors.New("storage: signing key has no client_email")
	}
	key, err := decodeRSAKey(doc.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &KeySigner{email: email, key: key}, nil
}

func (s *KeySigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes returns an RSA PKCS#1 v1.5 signature over the SHA-256 digest of payload.
func (s *KeySigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer has no key")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign url payload: %w", err)
	}
	return sig, nil
}

// getURLOptions describes a V4 GET URL for one media object, signed by signer.
func getURLOptions(ctx context.Context, signer Signer, expires time.Time) *gcs.SignedURLOptions {
	return &gcs.SignedURLOptions{
		GoogleAccessID: signer.Email(),
		Method:         "GET",
		Expires:        expires,
		Scheme:         gcs.SigningSchemeV4,
		SignBytes: func(payload []byte) ([]byte, error) {
			return signer.SignBytes(ctx, payload)
		},
	}
}

// decodeRSAKey accepts PKCS#8 (what Google issues) and PKCS#1 PEM blocks.
func decodeRSAKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemData)))
	if block == nil {
		return nil, errors.New("storage: signing key has no PEM private_key")
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: signing key is not RSA")
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("storage: parse signing key: %w", err)
	}
	return key, nil
}
