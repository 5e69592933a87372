// Package session implements the broker's own session tokens: compact,
// HMAC-signed JWTs binding a user identity to their upstream provider.
// A session token is a bearer capability held by the desktop client and
// presented on every authenticated call; the broker stores nothing per
// session server-side.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the validity window of an issued session token.
const DefaultTTL = 30 * 24 * time.Hour

// Codec verification failures. Handlers map both to an unauthorized
// response, but clients distinguish them for messaging.
var (
	// ErrInvalidSignature means the token was not signed by this broker
	// or was tampered with.
	ErrInvalidSignature = errors.New("session token signature is invalid")
	// ErrExpired means the token was valid once but its validity window
	// has passed.
	ErrExpired = errors.New("session token is expired")
	// ErrMalformed means the token does not decode to a well-formed
	// claim set at all.
	ErrMalformed = errors.New("session token is malformed")
)

// Claims is the payload carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	// UserID is the provider-issued stable user identifier.
	UserID string `json:"userId"`
	// Username is the user's display name.
	Username string `json:"username"`
	// Email is the user's account email.
	Email string `json:"email"`
	// Provider is the identity provider this session is bound to. The
	// broker, not the client, decides the AI execution path from it.
	Provider string `json:"provider"`
	// GitHubToken carries the upstream access token inline for the
	// GitHub path, keeping that path stateless across broker restarts.
	// Empty for PKCE-provider sessions, whose upstream tokens are
	// resolved server-side per request.
	GitHubToken string `json:"githubToken,omitempty"`
}

// Codec signs and verifies session tokens with a server-held secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec signing with secret and issuing tokens valid
// for ttl. A non-positive ttl falls back to DefaultTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs claims into a compact token string expiring ttl from now.
// The result is URL-safe and fits both a query parameter and a bearer
// header.
func (c *Codec) Issue(claims Claims) (string, error) {
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. A token is
// never partially valid: any signature, expiry, or structural failure
// rejects it whole.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return &claims, nil
}

// mapJWTError translates jwt library errors into the codec's error set.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
