// Package pkce implements the Proof Key for Code Exchange (RFC 7636)
// primitives used by the OAuth authorization-code flow. It generates
// cryptographically random code verifiers, derives their S256 code
// challenges, and produces opaque state values for correlating an
// authorization request with its callback.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Codes holds a PKCE verifier and its derived challenge for one
// authorization flow.
type Codes struct {
	// Verifier is the high-entropy secret held by the broker until the
	// provider's callback arrives.
	Verifier string
	// Challenge is the S256 transform of Verifier, sent in the
	// authorization request.
	Challenge string
}

// Generate creates a new verifier/challenge pair as specified in RFC 7636.
// The verifier is random and URL-safe; the challenge is its SHA-256 digest
// encoded the way the provider's S256 method expects.
func Generate() (*Codes, error) {
	verifier, err := NewVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	return &Codes{
		Verifier:  verifier,
		Challenge: ChallengeFor(verifier),
	}, nil
}

// NewVerifier creates a cryptographically secure random code verifier,
// URL-safe base64 encoded without padding.
func NewVerifier() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ChallengeFor derives the S256 code challenge for a verifier. The result
// must match what the provider computes server-side, so the encoding is
// URL-safe base64 without padding over the raw SHA-256 digest.
func ChallengeFor(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// NewState creates an opaque random value binding an authorization request
// to its callback. It is a correlation key, not a secret on its own.
func NewState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
