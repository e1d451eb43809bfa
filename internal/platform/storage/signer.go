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
)

// Signer signs URL payloads on behalf of a service account.
type Signer interface {
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// serviceAccountKey is the subset of a downloaded service account JSON key we need.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ServiceAccountSigner holds a service account key in memory.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewServiceAccountSigner parses a service account JSON key, normally the resolved value of
// API_STORAGE_SIGNER_KEY.
func NewServiceAccountSigner(data []byte) (*ServiceAccountSigner, error) {
	var sa serviceAccountKey
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}
	if sa.Type != "" && sa.Type != "service_account" {
		return nil, fmt.Errorf("storage: key type %q is not a service account", sa.Type)
	}
	email := strings.TrimSpace(sa.ClientEmail)
	if email == "" {
		return nil, errors.New("storage: client_email missing in service account json")
	}
	key, err := decodeRSAKey(sa.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: key}, nil
}

// Email is the GoogleAccessID placed in signed URLs.
func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes returns an RSASSA-PKCS1-v1_5 SHA-256 signature, the scheme V4 signing expects.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer not initialised")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, sum[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

// decodeRSAKey accepts PKCS#8 (what Google issues) and PKCS#1 PEM blocks.
func decodeRSAKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(raw)))
	if block == nil {
		return nil, errors.New("storage: private_key is not PEM encoded")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("storage: parse PKCS#1 key: %w", err)
		}
		return key, nil
	default:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("storage: parse PKCS#8 key: %w", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return key, nil
	}
}
