package openai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// IDTokenClaims is the payload of the provider-issued OpenID Connect
// identity token. The claims are decoded without verifying the upstream
// signature and must be treated as untrusted until the exchange that
// produced them has itself succeeded over TLS against the provider's
// token endpoint.
type IDTokenClaims struct {
	// Sub is the stable subject identifier for the user.
	Sub string `json:"sub"`
	// Email is the account email.
	Email string `json:"email"`
	// EmailVerified reports whether the provider verified the email.
	EmailVerified bool `json:"email_verified"`
	// Name is the profile display name; may be absent.
	Name string `json:"name"`
	// Iss is the token issuer.
	Iss string `json:"iss"`
	// Exp is the token expiry as a Unix timestamp.
	Exp int64 `json:"exp"`
	// Iat is the issue time as a Unix timestamp.
	Iat int64 `json:"iat"`
}

// DisplayName returns the profile name, falling back to the email when
// the provider sent none.
func (c *IDTokenClaims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}

// ParseIDToken extracts the claims from a dot-delimited identity token
// without cryptographic signature verification. It decodes the payload
// segment only, which is enough to read the subject, email, and name
// after the token arrived through the provider's own token response.
func ParseIDToken(token string) (*IDTokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid ID token format: expected 3 parts, got %d", len(parts))
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode ID token payload: %w", err)
	}

	var claims IDTokenClaims
	if err = json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ID token claims: %w", err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("ID token missing sub claim")
	}

	return &claims, nil
}

// base64URLDecode decodes a base64url segment, re-adding the padding the
// JWT encoding strips.
func base64URLDecode(data string) ([]byte, error) {
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return base64.URLEncoding.DecodeString(data)
}
