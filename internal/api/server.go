// Package api assembles the broker's HTTP surface: the main API server
// and the secondary OAuth-callback listener kept on a fixed port for
// compatibility with the Codex CLI's registered redirect URI.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/inkdesk/inkbroker/internal/api/handlers"
	"github.com/inkdesk/inkbroker/internal/api/middleware"
	"github.com/inkdesk/inkbroker/internal/broker"
	"github.com/inkdesk/inkbroker/internal/config"
	"github.com/inkdesk/inkbroker/internal/logging"
	"github.com/inkdesk/inkbroker/internal/proxy"
)

// Server runs the main API listener and the secondary OAuth-callback
// listener. Both share one handler set and therefore one PKCE staging
// store, so a flow started on either port can complete on the other.
type Server struct {
	cfg      *config.Config
	handler  *handlers.Handler
	broker   *broker.Broker
	main     *http.Server
	callback *http.Server
}

// New assembles the router and both listeners for the given broker and
// proxy.
func New(cfg *config.Config, b *broker.Broker, p *proxy.Proxy) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handlers.New(b, p)
	s := &Server{cfg: cfg, handler: h, broker: b}

	s.main = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.buildMainEngine(),
	}
	s.callback = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.OAuthCallbackPort),
		Handler:      s.buildCallbackEngine(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// buildMainEngine wires the full API surface.
func (s *Server) buildMainEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogger(), logging.GinRecovery())

	engine.GET("/health", s.handler.Health)

	auth := engine.Group("/auth")
	{
		auth.GET("/github/url", s.handler.GitHubAuthURL)
		auth.GET("/github/callback", s.handler.GitHubCallback)
		auth.POST("/exchange", s.handler.GitHubExchange)
		auth.GET("/openai/url", s.handler.OpenAIAuthURL)
		auth.GET("/callback", s.handler.OpenAICallback)
	}

	authed := engine.Group("/api", middleware.RequireSession(s.broker.Sessions()))
	{
		authed.GET("/user", s.handler.User)
		authed.POST("/provider", s.handler.SelectProvider)
		authed.POST("/ai/request", s.handler.AIRequest)
	}

	return engine
}

// buildCallbackEngine wires the minimal surface of the secondary
// listener: just the PKCE callback, same handler and staging store as
// the main port.
func (s *Server) buildCallbackEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogger(), logging.GinRecovery())
	engine.GET("/auth/callback", s.handler.OpenAICallback)
	return engine
}

// Run starts both listeners and blocks until ctx is canceled, then shuts
// both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		log.Infof("API server listening on %s", s.main.Addr)
		if err := s.main.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
	}()
	go func() {
		log.Infof("OAuth callback server listening on %s", s.callback.Addr)
		if err := s.callback.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("oauth callback server failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
		s.shutdown()
		return nil
	}
}

// shutdown stops both listeners with a bounded grace period.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.main.Shutdown(ctx); err != nil {
		log.Warnf("api server shutdown: %v", err)
	}
	if err := s.callback.Shutdown(ctx); err != nil {
		log.Warnf("oauth callback server shutdown: %v", err)
	}
}
