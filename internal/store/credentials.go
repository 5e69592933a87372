// Package store provides the in-memory state owned by the auth broker:
// the credential store mapping authenticated users to their upstream
// provider credentials, and the transient PKCE staging store that holds
// code verifiers between an authorization request and its callback.
//
// Both stores are process-resident by design. A broker restart loses all
// sessions and credentials, and clients must treat a missing credential as
// a "log in again" signal rather than a transient fault.
package store

import (
	"sync"
	"time"
)

// Provider identifiers for credential bundles and session claims.
const (
	// ProviderGitHub marks credentials obtained through GitHub's classic
	// OAuth2 flow. GitHub OAuth app tokens are long-lived, so no expiry is
	// tracked for them.
	ProviderGitHub = "github"
	// ProviderOpenAI marks credentials obtained through OpenAI's PKCE
	// flow. These access tokens expire and must be refreshed.
	ProviderOpenAI = "openai-oauth"
)

// Identity describes an authenticated user as reported by an upstream
// identity provider. The ID is stable per provider; display name and email
// are refreshed on every login.
type Identity struct {
	// ID is the provider-issued stable user identifier.
	ID string `json:"id"`
	// Username is the display name (GitHub login or OpenAI profile name).
	Username string `json:"username"`
	// Email is the account email, possibly a fallback address when the
	// provider withholds it.
	Email string `json:"email"`
	// Provider is the originating identity provider.
	Provider string `json:"provider"`
}

// CredentialBundle holds the upstream credentials bound to one identity.
// Bundles are mutated in place on login and on refresh and are never
// deleted automatically; logout is a client-side session discard.
type CredentialBundle struct {
	// Identity is the owner of this bundle.
	Identity Identity
	// AccessToken is the current upstream access token.
	AccessToken string
	// RefreshToken, when present, can mint a new access token after expiry.
	RefreshToken string
	// AccessTokenExpiry is the absolute expiry of AccessToken. Zero for
	// providers whose tokens are not time-boxed (GitHub).
	AccessTokenExpiry time.Time
	// SelectedModel is the user's chosen completion model, free-form.
	SelectedModel string
}

// Expired reports whether the bundle's access token has passed its expiry.
// Bundles without a tracked expiry never expire.
func (b *CredentialBundle) Expired(now time.Time) bool {
	return !b.AccessTokenExpiry.IsZero() && !now.Before(b.AccessTokenExpiry)
}

// CredentialStore is the keyed map from user identity to credential
// bundle. It is injected into the broker so a persistent implementation
// can replace the in-memory one without touching broker logic.
type CredentialStore interface {
	// Get returns the bundle for a user ID, or false when none exists.
	Get(userID string) (*CredentialBundle, bool)
	// Upsert stores or replaces the bundle for a user ID.
	Upsert(userID string, bundle *CredentialBundle)
	// Update applies fn to the bundle for a user ID under the store's
	// lock, returning false when no bundle exists. It serializes
	// concurrent mutations of one user's bundle.
	Update(userID string, fn func(*CredentialBundle)) bool
	// Delete removes the bundle for a user ID.
	Delete(userID string)
	// Len returns the number of stored bundles.
	Len() int
}

// MemoryCredentialStore is the process-resident CredentialStore used by
// the reference deployment.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	bundles map[string]*CredentialBundle
}

// NewMemoryCredentialStore creates an empty in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{bundles: make(map[string]*CredentialBundle)}
}

// Get returns a copy-safe pointer to the stored bundle for userID.
func (s *MemoryCredentialStore) Get(userID string) (*CredentialBundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundle, ok := s.bundles[userID]
	if !ok {
		return nil, false
	}
	clone := *bundle
	return &clone, true
}

// Upsert stores or replaces the bundle for userID.
func (s *MemoryCredentialStore) Upsert(userID string, bundle *CredentialBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *bundle
	s.bundles[userID] = &clone
}

// Update mutates the stored bundle for userID under the write lock.
func (s *MemoryCredentialStore) Update(userID string, fn func(*CredentialBundle)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle, ok := s.bundles[userID]
	if !ok {
		return false
	}
	fn(bundle)
	return true
}

// Delete removes the bundle for userID.
func (s *MemoryCredentialStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, userID)
}

// Len returns the number of stored bundles.
func (s *MemoryCredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bundles)
}
