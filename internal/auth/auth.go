package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Organization is the tenant scope an authenticated SCIM call operates in.
type Organization struct {
	ID   string
	Name string
}

// Token is an authenticated provisioning token and the organization it was
// issued for.
type Token struct {
	ID           string
	Organization Organization
}

// TokenLookup is the interface for resolving token hashes to tokens.
type TokenLookup interface {
	GetByHash(ctx context.Context, hash string) (*Token, error)
}

// Service provides authentication operations backed by a token store.
type Service struct {
	store TokenLookup
}

// NewService creates a new authentication service.
func NewService(store TokenLookup) *Service {
	return &Service{store: store}
}

// Authenticate hashes the presented bearer token and resolves it to the
// organization it was issued for.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (*Token, error) {
	return s.store.GetByHash(ctx, HashToken(plaintext))
}

// GenerateToken creates a new provisioning token: 32 random bytes, hex
// encoded. It returns the SHA-256 hex digest (the only form ever stored) and
// the plaintext, which is shown once at issuance.
func GenerateToken() (hash, plaintext string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	plaintext = hex.EncodeToString(b)
	return HashToken(plaintext), plaintext, nil
}

// HashToken returns the hex-encoded SHA-256 hash of the given plaintext
// token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
