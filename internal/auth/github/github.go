// Package github implements the classic OAuth2 authorization-code
// exchange against GitHub. It trades an authorization code for a
// long-lived access token and fetches the authenticated user's profile.
// GitHub OAuth app tokens are not time-boxed, so no refresh flow exists
// on this path.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitHub OAuth endpoints.
const (
	// AuthURL is the authorization endpoint the user's browser is sent to.
	AuthURL = "https://github.com/login/oauth/authorize"
	// TokenURL is the endpoint exchanging an authorization code for a token.
	TokenURL = "https://github.com/login/oauth/access_token"
	// UserURL is the API endpoint returning the authenticated user.
	UserURL = "https://api.github.com/user"
	// Scope requested during authorization.
	Scope = "user:email"
)

// User is the subset of GitHub's user object the broker needs.
type User struct {
	// ID is GitHub's numeric user identifier.
	ID int64 `json:"id"`
	// Login is the GitHub username.
	Login string `json:"login"`
	// Email is the public profile email; empty when the user hides it.
	Email string `json:"email"`
}

// Client performs GitHub's OAuth2 code exchange and user lookup.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	callbackURL  string

	// TokenEndpoint and UserEndpoint default to GitHub's public
	// endpoints and can be repointed, e.g. at a test server.
	TokenEndpoint string
	UserEndpoint  string
}

// NewClient creates a GitHub OAuth client for the given app registration.
func NewClient(clientID, clientSecret, callbackURL string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		clientID:      clientID,
		clientSecret:  clientSecret,
		callbackURL:   callbackURL,
		TokenEndpoint: TokenURL,
		UserEndpoint:  UserURL,
	}
}

// AuthorizationURL builds the GitHub authorization URL for the given
// state value. GitHub's flow needs no server-side staging; the state is
// round-tripped by the provider and checked only by the client.
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":    {c.clientID},
		"redirect_uri": {c.callbackURL},
		"scope":        {Scope},
		"state":        {state},
	}
	return fmt.Sprintf("%s?%s", AuthURL, params.Encode())
}

// ExchangeCode trades an authorization code for an access token via a
// single POST to GitHub's token endpoint.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {c.callbackURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	// GitHub reports exchange errors with a 200 status and an error field.
	if tokenResp.Error != "" {
		return "", fmt.Errorf("token exchange rejected: %s: %s", tokenResp.Error, tokenResp.ErrorDescription)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no access token")
	}

	return tokenResp.AccessToken, nil
}

// FetchUser returns the authenticated user for an access token.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user User
	if err = json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("user response missing id")
	}

	return &user, nil
}
