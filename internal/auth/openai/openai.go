// Package openai implements the PKCE-secured OAuth2 flow against
// OpenAI's auth service, as used by the Codex CLI's public client. It
// builds authorization URLs, exchanges authorization codes together with
// their PKCE verifiers for token bundles, and refreshes expired access
// tokens with the refresh_token grant.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inkdesk/inkbroker/internal/auth/pkce"
)

// OAuth configuration constants for OpenAI's public Codex client.
const (
	// AuthURL is OpenAI's authorization endpoint.
	AuthURL = "https://auth.openai.com/oauth/authorize"
	// TokenURL is OpenAI's token endpoint for both the code and the
	// refresh_token grants.
	TokenURL = "https://auth.openai.com/oauth/token"
	// DefaultClientID is the OpenAI Codex public client identifier.
	DefaultClientID = "app_EMoamEEZ73f0CkXaXp7hrann"
	// Scope requested during authorization. offline_access is what makes
	// the provider return a refresh token.
	Scope = "openid profile email offline_access"
	// DefaultAccessTokenTTL is assumed when the token response carries no
	// expires_in field.
	DefaultAccessTokenTTL = time.Hour
)

// TokenBundle is the result of a code exchange or refresh: the upstream
// access and refresh tokens plus the identity-carrying ID token.
type TokenBundle struct {
	// AccessToken authenticates AI API calls until it expires.
	AccessToken string `json:"access_token"`
	// RefreshToken mints new access tokens. The provider may rotate it on
	// refresh; when absent in a refresh response the old one stays valid.
	RefreshToken string `json:"refresh_token"`
	// IDToken is the OpenID Connect identity token.
	IDToken string `json:"id_token"`
	// ExpiresIn is the access token lifetime in seconds; zero when the
	// provider omitted it.
	ExpiresIn int `json:"expires_in"`
}

// Expiry returns the absolute access-token expiry implied by the bundle,
// assuming DefaultAccessTokenTTL when the provider reported no lifetime.
func (t *TokenBundle) Expiry(now time.Time) time.Time {
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return now.Add(DefaultAccessTokenTTL)
}

// Client performs OpenAI's PKCE OAuth exchanges.
type Client struct {
	httpClient  *http.Client
	clientID    string
	callbackURL string

	// TokenEndpoint defaults to the provider's token endpoint and can
	// be repointed, e.g. at a test server.
	TokenEndpoint string
}

// NewClient creates an OpenAI OAuth client. An empty clientID falls back
// to the Codex public client.
func NewClient(clientID, callbackURL string) *Client {
	if clientID == "" {
		clientID = DefaultClientID
	}
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		clientID:      clientID,
		callbackURL:   callbackURL,
		TokenEndpoint: TokenURL,
	}
}

// AuthorizationURL builds the authorization URL carrying the S256 code
// challenge and state. The extra Codex flags match what the provider's
// own CLI sends and keep the simplified flow enabled.
func (c *Client) AuthorizationURL(state string, codes *pkce.Codes) (string, error) {
	if codes == nil {
		return "", fmt.Errorf("PKCE codes are required")
	}

	params := url.Values{
		"response_type":              {"code"},
		"client_id":                  {c.clientID},
		"redirect_uri":               {c.callbackURL},
		"scope":                      {Scope},
		"state":                      {state},
		"code_challenge":             {codes.Challenge},
		"code_challenge_method":      {"S256"},
		"id_token_add_organizations": {"true"},
		"codex_cli_simplified_flow":  {"true"},
	}

	return fmt.Sprintf("%s?%s", AuthURL, params.Encode()), nil
}

// ExchangeCode trades an authorization code and its PKCE verifier for a
// token bundle.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenBundle, error) {
	if verifier == "" {
		return nil, fmt.Errorf("code verifier is required for token exchange")
	}

	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"code":          {code},
		"redirect_uri":  {c.callbackURL},
		"code_verifier": {verifier},
	}

	return c.postToken(ctx, data, "token exchange")
}

// Refresh obtains a fresh access token with the refresh_token grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
		"scope":         {"openid profile email"},
	}

	return c.postToken(ctx, data, "token refresh")
}

// postToken performs a form POST against the token endpoint and decodes
// the bundle, labeling errors with the calling operation.
func (c *Client) postToken(ctx context.Context, data url.Values, op string) (*TokenBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, string(body))
	}

	var bundle TokenBundle
	if err = json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	if bundle.AccessToken == "" {
		return nil, fmt.Errorf("%s returned no access token", op)
	}

	return &bundle, nil
}
