// Package proxy forwards chat-completion requests to the AI provider
// bound to the caller's session. It resolves the execution path from
// verified session claims only, lazily refreshes expired OpenAI access
// tokens, and normalizes the upstream response shape for the desktop
// client.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/inkdesk/inkbroker/internal/auth/openai"
	"github.com/inkdesk/inkbroker/internal/auth/session"
	"github.com/inkdesk/inkbroker/internal/broker"
	"github.com/inkdesk/inkbroker/internal/logging"
	"github.com/inkdesk/inkbroker/internal/store"
)

// Upstream chat-completion endpoints and request defaults.
const (
	// OpenAIEndpoint serves OAuth-token requests on the OpenAI path.
	OpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	// GitHubModelsEndpoint serves GitHub-token requests against the
	// GitHub Models inference API.
	GitHubModelsEndpoint = "https://models.inference.ai.azure.com/chat/completions"
	// OpenAIModel is the fixed model used on the OpenAI path.
	OpenAIModel = "gpt-4-turbo-preview"
	// DefaultMaxTokens caps the completion when the request sets none.
	DefaultMaxTokens = 2048
	// DefaultTemperature applies when the request sets none.
	DefaultTemperature = 0.7
)

// timeNow is stubbed in tests.
var timeNow = time.Now

// ExecutionPath identifies which upstream serves a request. It is
// derived from the session's bound provider, never from client input.
type ExecutionPath int

const (
	// PathGitHub routes to the GitHub Models API. It is the default path.
	PathGitHub ExecutionPath = iota
	// PathOpenAI routes to the OpenAI API with the stored OAuth token.
	PathOpenAI
)

// ResolveExecutionPath decides the upstream for a verified session. Only
// a session bound to the OpenAI provider takes the OpenAI path;
// everything else falls back to GitHub Models.
func ResolveExecutionPath(claims *session.Claims) ExecutionPath {
	if claims.Provider == store.ProviderOpenAI {
		return PathOpenAI
	}
	return PathGitHub
}

// Request is a chat-completion request from the client.
type Request struct {
	// Prompt is the user message. Required.
	Prompt string `json:"prompt" binding:"required"`
	// Context, when present, becomes the system message.
	Context string `json:"context"`
	// MaxTokens caps the completion; zero selects the default.
	MaxTokens int `json:"maxTokens"`
	// Temperature sets sampling temperature; zero selects the default.
	Temperature float64 `json:"temperature"`
}

// Usage reports upstream token accounting when the provider returned it.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is the normalized completion returned to the client. Usage is
// omitted entirely, not zeroed, when the upstream reported none.
type Response struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
}

// Proxy routes AI requests for authenticated sessions.
type Proxy struct {
	creds      store.CredentialStore
	openai     *openai.Client
	httpClient *http.Client

	// refreshes collapses concurrent refresh attempts for one identity
	// into a single upstream call, so racing requests cannot burn a
	// rotating refresh token.
	refreshes singleflight.Group

	// Endpoints are fields so tests can point the proxy at local servers.
	openaiEndpoint string
	githubEndpoint string
}

// New creates a proxy over the given credential store, sharing the
// broker's OpenAI client for token refreshes.
func New(creds store.CredentialStore, openaiClient *openai.Client) *Proxy {
	return &Proxy{
		creds:          creds,
		openai:         openaiClient,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		openaiEndpoint: OpenAIEndpoint,
		githubEndpoint: GitHubModelsEndpoint,
	}
}

// Do executes a chat-completion request for a verified session. It
// resolves the caller's credential bundle, refreshes an expired OpenAI
// access token first when needed, and forwards the request to the
// provider the session is bound to.
func (p *Proxy) Do(ctx context.Context, claims *session.Claims, req *Request) (*Response, error) {
	bundle, ok := p.creds.Get(claims.UserID)
	if !ok {
		return nil, broker.ErrUserNotFound
	}

	switch ResolveExecutionPath(claims) {
	case PathOpenAI:
		accessToken := bundle.AccessToken
		if bundle.Expired(timeNow()) {
			refreshed, err := p.refreshAccessToken(ctx, claims.UserID)
			if err != nil {
				return nil, err
			}
			accessToken = refreshed
		}
		return p.complete(ctx, p.openaiEndpoint, accessToken, OpenAIModel, req)

	default:
		accessToken := bundle.AccessToken
		if accessToken == "" {
			accessToken = claims.GitHubToken
		}
		if accessToken == "" {
			return nil, broker.ErrNoCredential
		}
		model := bundle.SelectedModel
		if model == "" {
			model = broker.DefaultModel
		}
		return p.complete(ctx, p.githubEndpoint, accessToken, model, req)
	}
}

// refreshAccessToken refreshes the stored OpenAI access token for a user,
// collapsing concurrent callers onto one upstream exchange. A failed
// refresh leaves the stored bundle untouched; the next request retries
// from scratch.
func (p *Proxy) refreshAccessToken(ctx context.Context, userID string) (string, error) {
	token, err, _ := p.refreshes.Do(userID, func() (any, error) {
		bundle, ok := p.creds.Get(userID)
		if !ok {
			return nil, broker.ErrUserNotFound
		}
		// A caller that queued behind an in-flight refresh may find the
		// token already fresh.
		if !bundle.Expired(timeNow()) {
			return bundle.AccessToken, nil
		}
		if bundle.RefreshToken == "" {
			return nil, broker.ErrNoRefreshToken
		}

		log.Debugf("refreshing OpenAI access token for user %s", userID)
		tokens, err := p.openai.Refresh(ctx, bundle.RefreshToken)
		if err != nil {
			return nil, broker.WithCause(broker.ErrRefreshFailed, err)
		}

		expiry := tokens.Expiry(timeNow())
		p.creds.Update(userID, func(b *store.CredentialBundle) {
			b.AccessToken = tokens.AccessToken
			if tokens.RefreshToken != "" {
				b.RefreshToken = tokens.RefreshToken
			}
			b.AccessTokenExpiry = expiry
		})
		return tokens.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// chatMessage is one entry of the upstream messages array.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the upstream chat-completions request body. Both
// upstreams accept the same shape.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// complete performs the upstream chat-completions call and normalizes
// the response.
func (p *Proxy) complete(ctx context.Context, endpoint, accessToken, model string, req *Request) (*Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.Context != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Context})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, broker.WithCause(broker.ErrUpstreamAI, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, broker.WithCause(broker.ErrUpstreamAI, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, broker.WithCause(broker.ErrUpstreamAI, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, broker.WithCause(broker.ErrUpstreamAI, err)
	}

	if resp.StatusCode != http.StatusOK {
		// Pass the upstream's own message through: rate limits, quota,
		// and auth failures need different client-side remediation.
		message := gjson.GetBytes(body, "error.message").String()
		if message == "" {
			message = fmt.Sprintf("upstream returned status %d", resp.StatusCode)
		}
		log.WithField("request_id", logging.RequestIDFrom(ctx)).
			Warnf("AI request failed with status %d: %s", resp.StatusCode, message)
		return nil, broker.WithMessage(broker.ErrUpstreamAI, message)
	}

	result := &Response{
		Text: gjson.GetBytes(body, "choices.0.message.content").String(),
	}
	if usage := gjson.GetBytes(body, "usage"); usage.Exists() {
		result.Usage = &Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}
	return result, nil
}
