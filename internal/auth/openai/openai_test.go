package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/inkdesk/inkbroker/internal/auth/pkce"
)

func TestAuthorizationURL(t *testing.T) {
	c := NewClient("", "http://localhost:1455/auth/callback")
	codes := &pkce.Codes{Verifier: "verifier", Challenge: "challenge"}

	raw, err := c.AuthorizationURL("state-123", codes)
	if err != nil {
		t.Fatalf("AuthorizationURL() error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorization URL: %v", err)
	}

	q := u.Query()
	if q.Get("client_id") != DefaultClientID {
		t.Errorf("client_id = %q, want Codex public client", q.Get("client_id"))
	}
	if q.Get("code_challenge") != "challenge" {
		t.Errorf("code_challenge = %q", q.Get("code_challenge"))
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", q.Get("code_challenge_method"))
	}
	if q.Get("scope") != Scope {
		t.Errorf("scope = %q, want %q", q.Get("scope"), Scope)
	}
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("codex_cli_simplified_flow") != "true" {
		t.Errorf("codex_cli_simplified_flow = %q", q.Get("codex_cli_simplified_flow"))
	}
}

func TestAuthorizationURLRequiresCodes(t *testing.T) {
	c := NewClient("", "http://localhost/cb")
	if _, err := c.AuthorizationURL("state", nil); err == nil {
		t.Error("AuthorizationURL(nil codes) succeeded, want error")
	}
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostFormValue("code_verifier"); got != "verifier-1" {
			t.Errorf("code_verifier = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","id_token":"a.b.c","expires_in":3600}`))
	}))
	defer srv.Close()

	c := NewClient("", "http://localhost/cb")
	c.TokenEndpoint = srv.URL

	bundle, err := c.ExchangeCode(context.Background(), "code-1", "verifier-1")
	if err != nil {
		t.Fatalf("ExchangeCode() error: %v", err)
	}
	if bundle.AccessToken != "at-1" || bundle.RefreshToken != "rt-1" || bundle.ExpiresIn != 3600 {
		t.Errorf("bundle = %+v", bundle)
	}
}

func TestExchangeCodeRequiresVerifier(t *testing.T) {
	c := NewClient("", "http://localhost/cb")
	if _, err := c.ExchangeCode(context.Background(), "code", ""); err == nil {
		t.Error("ExchangeCode() without verifier succeeded, want error")
	}
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostFormValue("refresh_token"); got != "rt-1" {
			t.Errorf("refresh_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","expires_in":3600}`))
	}))
	defer srv.Close()

	c := NewClient("", "http://localhost/cb")
	c.TokenEndpoint = srv.URL

	bundle, err := c.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if bundle.AccessToken != "at-2" || bundle.RefreshToken != "rt-2" {
		t.Errorf("bundle = %+v", bundle)
	}
}

func TestRefreshUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := NewClient("", "http://localhost/cb")
	c.TokenEndpoint = srv.URL

	if _, err := c.Refresh(context.Background(), "rt-1"); err == nil {
		t.Error("Refresh() succeeded, want error")
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	c := NewClient("", "http://localhost/cb")
	if _, err := c.Refresh(context.Background(), ""); err == nil {
		t.Error("Refresh() without token succeeded, want error")
	}
}
