package openai

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

// fakeIDToken builds a dot-delimited token with the given payload and a
// junk signature; ParseIDToken never verifies signatures.
func fakeIDToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".signature"
}

func TestParseIDToken(t *testing.T) {
	token := fakeIDToken(t, map[string]any{
		"sub":   "user-openai-1",
		"email": "writer@example.com",
		"name":  "A Writer",
	})

	claims, err := ParseIDToken(token)
	if err != nil {
		t.Fatalf("ParseIDToken() error: %v", err)
	}
	if claims.Sub != "user-openai-1" {
		t.Errorf("Sub = %q, want %q", claims.Sub, "user-openai-1")
	}
	if claims.Email != "writer@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "writer@example.com")
	}
	if claims.DisplayName() != "A Writer" {
		t.Errorf("DisplayName() = %q, want %q", claims.DisplayName(), "A Writer")
	}
}

func TestParseIDTokenNameFallback(t *testing.T) {
	token := fakeIDToken(t, map[string]any{
		"sub":   "user-openai-2",
		"email": "writer@example.com",
	})

	claims, err := ParseIDToken(token)
	if err != nil {
		t.Fatalf("ParseIDToken() error: %v", err)
	}
	if claims.DisplayName() != "writer@example.com" {
		t.Errorf("DisplayName() = %q, want email fallback", claims.DisplayName())
	}
}

func TestParseIDTokenErrors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "two parts", token: "a.b"},
		{name: "four parts", token: "a.b.c.d"},
		{name: "payload not base64", token: "a.!!!.c"},
		{name: "payload not json", token: "a." + "bm90IGpzb24" + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseIDToken(tt.token); err == nil {
				t.Error("ParseIDToken() succeeded, want error")
			}
		})
	}
}

func TestParseIDTokenMissingSub(t *testing.T) {
	token := fakeIDToken(t, map[string]any{"email": "writer@example.com"})
	if _, err := ParseIDToken(token); err == nil {
		t.Error("ParseIDToken() without sub succeeded, want error")
	}
}

func TestTokenBundleExpiry(t *testing.T) {
	now := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)

	withExpiresIn := &TokenBundle{AccessToken: "at", ExpiresIn: 7200}
	if got := withExpiresIn.Expiry(now); !got.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("Expiry() with expires_in = %v, want now+2h", got)
	}

	// Missing expires_in assumes the default one-hour lifetime.
	withoutExpiresIn := &TokenBundle{AccessToken: "at"}
	if got := withoutExpiresIn.Expiry(now); !got.Equal(now.Add(DefaultAccessTokenTTL)) {
		t.Errorf("Expiry() without expires_in = %v, want now+1h", got)
	}
}
