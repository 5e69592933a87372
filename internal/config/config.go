// Package config provides configuration management for the inkbroker
// server. Settings come from the environment, optionally seeded from a
// .env file, and cover the listen ports, OAuth app registrations, the
// session-signing secret, and the desktop client's deep-link target.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the broker's runtime configuration.
type Config struct {
	// Port is the main API listen port.
	Port int `env:"PORT" envDefault:"3001"`

	// OAuthCallbackPort is the secondary listener reserved for the
	// Codex-compatible OAuth redirect URI.
	OAuthCallbackPort int `env:"OAUTH_CALLBACK_PORT" envDefault:"1455"`

	// JWTSecret signs the broker's session tokens.
	JWTSecret string `env:"JWT_SECRET,required"`

	// GitHubClientID identifies the GitHub OAuth app.
	GitHubClientID string `env:"GITHUB_CLIENT_ID"`

	// GitHubClientSecret is the GitHub OAuth app secret.
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	// GitHubCallbackURL is the registered GitHub redirect URI.
	GitHubCallbackURL string `env:"GITHUB_CALLBACK_URL" envDefault:"http://localhost:3001/auth/github/callback"`

	// OpenAIClientID is the PKCE provider's fixed public client id.
	// Empty selects the Codex public client.
	OpenAIClientID string `env:"OPENAI_CLIENT_ID"`

	// OpenAICallbackURL is the PKCE redirect URI. It points at the
	// secondary listener by default.
	OpenAICallbackURL string `env:"OPENAI_CALLBACK_URL" envDefault:"http://localhost:1455/auth/callback"`

	// AppDeepLink is the desktop client's callback URL. The broker hands
	// the session token back to the client by redirecting the user's
	// browser here.
	AppDeepLink string `env:"APP_DEEP_LINK" envDefault:"http://localhost:1420/auth/callback"`

	// LogDir, when set, enables rotating file logs in that directory.
	LogDir string `env:"LOG_DIR"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `env:"DEBUG"`
}

// Load reads configuration from the environment. When envFile is
// non-empty it is loaded first; a missing file is not an error so the
// broker can run from a plain environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Debugf("no env file loaded from %s: %v", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
