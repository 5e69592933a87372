package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewVerifier(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		verifier, err := NewVerifier()
		if err != nil {
			t.Fatalf("NewVerifier() error: %v", err)
		}
		// 32 random bytes encode to 43 base64url characters.
		if len(verifier) != 43 {
			t.Fatalf("verifier length = %d, want 43", len(verifier))
		}
		if strings.ContainsAny(verifier, "+/=") {
			t.Fatalf("verifier %q contains non-URL-safe characters", verifier)
		}
		if seen[verifier] {
			t.Fatalf("verifier %q repeated", verifier)
		}
		seen[verifier] = true
	}
}

func TestChallengeFor(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	got := ChallengeFor(verifier)

	hash := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(hash[:])
	if got != want {
		t.Errorf("ChallengeFor() = %q, want %q", got, want)
	}
	// Deterministic: same verifier, same challenge.
	if again := ChallengeFor(verifier); again != got {
		t.Errorf("ChallengeFor() not deterministic: %q vs %q", got, again)
	}
}

func TestGenerate(t *testing.T) {
	codes, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if codes.Verifier == "" || codes.Challenge == "" {
		t.Fatal("Generate() returned empty codes")
	}
	if codes.Challenge != ChallengeFor(codes.Verifier) {
		t.Error("challenge does not match verifier")
	}
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error: %v", err)
	}
	b, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error: %v", err)
	}
	if a == b {
		t.Error("two states are identical")
	}
	// 16 random bytes encode to 22 base64url characters.
	if len(a) != 22 {
		t.Errorf("state length = %d, want 22", len(a))
	}
}
