package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestAuthorizationURL(t *testing.T) {
	c := NewClient("client-id", "client-secret", "http://localhost:3001/auth/github/callback")

	raw := c.AuthorizationURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorization URL: %v", err)
	}

	if !strings.HasPrefix(raw, AuthURL+"?") {
		t.Errorf("URL %q does not target %s", raw, AuthURL)
	}
	q := u.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("scope") != Scope {
		t.Errorf("scope = %q, want %q", q.Get("scope"), Scope)
	}
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("redirect_uri") != "http://localhost:3001/auth/github/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("code"); got != "abc123" {
			t.Errorf("code = %q, want %q", got, "abc123")
		}
		if got := r.PostFormValue("client_secret"); got != "client-secret" {
			t.Errorf("client_secret = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_fresh","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := NewClient("client-id", "client-secret", "http://localhost/cb")
	c.TokenEndpoint = srv.URL

	token, err := c.ExchangeCode(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ExchangeCode() error: %v", err)
	}
	if token != "gho_fresh" {
		t.Errorf("token = %q, want %q", token, "gho_fresh")
	}
}

func TestExchangeCodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusBadRequest, body: `{"error":"bad_verification_code"}`},
		{name: "error field with 200", status: http.StatusOK, body: `{"error":"bad_verification_code","error_description":"The code is incorrect."}`},
		{name: "empty token", status: http.StatusOK, body: `{"token_type":"bearer"}`},
		{name: "malformed body", status: http.StatusOK, body: `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("client-id", "client-secret", "http://localhost/cb")
			c.TokenEndpoint = srv.URL

			if _, err := c.ExchangeCode(context.Background(), "abc123"); err == nil {
				t.Error("ExchangeCode() succeeded, want error")
			}
		})
	}
}

func TestFetchUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_fresh" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":583231,"login":"octocat","email":"octocat@github.com"}`))
	}))
	defer srv.Close()

	c := NewClient("client-id", "client-secret", "http://localhost/cb")
	c.UserEndpoint = srv.URL

	user, err := c.FetchUser(context.Background(), "gho_fresh")
	if err != nil {
		t.Fatalf("FetchUser() error: %v", err)
	}
	if user.ID != 583231 || user.Login != "octocat" {
		t.Errorf("user = %+v", user)
	}
}

func TestFetchUserUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	c := NewClient("client-id", "client-secret", "http://localhost/cb")
	c.UserEndpoint = srv.URL

	if _, err := c.FetchUser(context.Background(), "bad"); err == nil {
		t.Error("FetchUser() succeeded, want error")
	}
}
