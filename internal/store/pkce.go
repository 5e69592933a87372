package store

import (
	"sync"
	"time"
)

// PKCEEntryTTL is how long a staged PKCE verifier remains redeemable.
// Authorization codes are short-lived; a callback arriving later than this
// is treated as expired and fails closed.
const PKCEEntryTTL = 10 * time.Minute

// PKCEEntry is a staged code verifier awaiting its OAuth callback, keyed
// by the opaque state value round-tripped through the provider.
type PKCEEntry struct {
	// Verifier is the PKCE code verifier generated for this flow.
	Verifier string
	// CreatedAt is when the authorization URL was issued.
	CreatedAt time.Time
}

// PKCEStore stages PKCE entries between the authorization-URL request and
// the provider callback. Entries are single-use: Take removes the entry it
// returns, so a replayed state can never redeem twice.
type PKCEStore struct {
	mu      sync.Mutex
	entries map[string]PKCEEntry
	now     func() time.Time
}

// NewPKCEStore creates an empty PKCE staging store.
func NewPKCEStore() *PKCEStore {
	return NewPKCEStoreWithClock(time.Now)
}

// NewPKCEStoreWithClock creates a staging store reading time from now.
// Tests use it to control entry aging.
func NewPKCEStoreWithClock(now func() time.Time) *PKCEStore {
	return &PKCEStore{
		entries: make(map[string]PKCEEntry),
		now:     now,
	}
}

// Put stages a verifier under the given state value.
func (s *PKCEStore) Put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = PKCEEntry{Verifier: verifier, CreatedAt: s.now()}
}

// Take returns and deletes the entry for state. Entries older than
// PKCEEntryTTL are treated as absent. The second return is false for
// unknown, expired, or already-consumed states.
func (s *PKCEStore) Take(state string) (PKCEEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[state]
	if !ok {
		return PKCEEntry{}, false
	}
	delete(s.entries, state)
	if s.now().Sub(entry.CreatedAt) > PKCEEntryTTL {
		return PKCEEntry{}, false
	}
	return entry, true
}

// SweepExpired drops entries older than PKCEEntryTTL and returns how many
// were removed. The broker calls this opportunistically whenever a new
// authorization URL is requested; there is no background timer.
func (s *PKCEStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-PKCEEntryTTL)
	removed := 0
	for state, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}

// Len returns the number of staged entries.
func (s *PKCEStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
