// Package handlers implements the HTTP handlers for the broker's API:
// the OAuth authorization-URL and callback endpoints for both providers,
// the authenticated user endpoints, and the AI proxy endpoint.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/inkdesk/inkbroker/internal/api/middleware"
	"github.com/inkdesk/inkbroker/internal/broker"
	"github.com/inkdesk/inkbroker/internal/buildinfo"
	"github.com/inkdesk/inkbroker/internal/proxy"
)

// Handler carries the broker and proxy the HTTP layer delegates to.
type Handler struct {
	broker *broker.Broker
	proxy  *proxy.Proxy
}

// New creates the API handler set.
func New(b *broker.Broker, p *proxy.Proxy) *Handler {
	return &Handler{broker: b, proxy: p}
}

// Health answers the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   buildinfo.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GitHubAuthURL returns the GitHub authorization URL and state.
func (h *Handler) GitHubAuthURL(c *gin.Context) {
	url, state, err := h.broker.GitHubAuthURL()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
}

// GitHubCallback is GitHub's redirect target. On success the user's
// browser is redirected to the desktop client's deep link with the
// session token; failures answer directly with an error status.
func (h *Handler) GitHubCallback(c *gin.Context) {
	token, _, err := h.broker.HandleGitHubCallback(c.Request.Context(), c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.broker.DeepLink(token, ""))
}

// GitHubExchange is the non-redirect variant of the GitHub callback for
// callers that already hold a code. Returns the session token and
// identity as JSON instead of redirecting.
func (h *Handler) GitHubExchange(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code required"})
		return
	}

	token, identity, err := h.broker.HandleGitHubCallback(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       identity.ID,
			"username": identity.Username,
			"email":    identity.Email,
		},
	})
}

// OpenAIAuthURL stages a PKCE entry and returns the authorization URL
// and state.
func (h *Handler) OpenAIAuthURL(c *gin.Context) {
	url, state, err := h.broker.OpenAIAuthURL()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
}

// OpenAICallback is the PKCE provider's redirect target, served on both
// the main API port and the secondary Codex-compatible listener.
func (h *Handler) OpenAICallback(c *gin.Context) {
	token, err := h.broker.HandleOpenAICallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.broker.DeepLink(token, "openai"))
}

// User returns the sanitized profile for the authenticated session.
func (h *Handler) User(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	profile, err := h.broker.UserProfile(claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SelectProvider records the authenticated user's model choice for the
// GitHub Models path.
func (h *Handler) SelectProvider(c *gin.Context) {
	var req struct {
		Model string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	claims := middleware.ClaimsFrom(c)
	model, err := h.broker.SelectModel(claims.UserID, req.Model)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "model": model})
}

// AIRequest proxies a chat-completion request to the provider bound to
// the authenticated session.
func (h *Handler) AIRequest(c *gin.Context) {
	var req proxy.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	claims := middleware.ClaimsFrom(c)
	resp, err := h.proxy.Do(c.Request.Context(), claims, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// respondError maps broker errors onto HTTP responses, keeping the
// stable type tag and message visible to the client.
func respondError(c *gin.Context, err error) {
	var authErr *broker.AuthError
	if errors.As(err, &authErr) {
		_ = c.Error(err)
		body := gin.H{"error": authErr.Message}
		if errors.Is(err, broker.ErrUpstreamAI) {
			body = gin.H{"error": "AI request failed", "message": authErr.Message}
		}
		c.JSON(authErr.Code, body)
		return
	}

	log.Errorf("unhandled error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
}
