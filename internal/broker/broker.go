// Package broker orchestrates the dual-provider OAuth flows. It owns the
// credential store and the PKCE staging store, drives the GitHub and
// OpenAI exchange clients, and mints the session tokens the desktop
// client presents on every authenticated call.
package broker

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/inkdesk/inkbroker/internal/auth/github"
	"github.com/inkdesk/inkbroker/internal/auth/openai"
	"github.com/inkdesk/inkbroker/internal/auth/pkce"
	"github.com/inkdesk/inkbroker/internal/auth/session"
	"github.com/inkdesk/inkbroker/internal/config"
	"github.com/inkdesk/inkbroker/internal/store"
)

// DefaultModel is used on the GitHub Models path when the user has not
// selected one.
const DefaultModel = "gpt-4o"

// timeNow is stubbed in tests.
var timeNow = time.Now

// Broker performs authorization-URL generation, callback handling, and
// session issuance for both identity providers.
type Broker struct {
	cfg      *config.Config
	creds    store.CredentialStore
	staging  *store.PKCEStore
	sessions *session.Codec
	github   *github.Client
	openai   *openai.Client
}

// New creates a broker bound to the given configuration and credential
// store. The PKCE staging store is private to the broker; the credential
// store is injected so it can be swapped for a persistent implementation.
func New(cfg *config.Config, creds store.CredentialStore) *Broker {
	return &Broker{
		cfg:      cfg,
		creds:    creds,
		staging:  store.NewPKCEStore(),
		sessions: session.NewCodec(cfg.JWTSecret, session.DefaultTTL),
		github:   github.NewClient(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL),
		openai:   openai.NewClient(cfg.OpenAIClientID, cfg.OpenAICallbackURL),
	}
}

// Sessions returns the session token codec.
func (b *Broker) Sessions() *session.Codec {
	return b.sessions
}

// Credentials returns the credential store.
func (b *Broker) Credentials() store.CredentialStore {
	return b.creds
}

// OpenAI returns the PKCE provider's exchange client, shared with the AI
// proxy for token refreshes.
func (b *Broker) OpenAI() *openai.Client {
	return b.openai
}

// GitHubAuthURL returns the GitHub authorization URL and its correlation
// state. Nothing is staged server-side for this flow.
func (b *Broker) GitHubAuthURL() (string, string, error) {
	state, err := pkce.NewState()
	if err != nil {
		return "", "", WithCause(ErrExchangeFailed, err)
	}
	return b.github.AuthorizationURL(state), state, nil
}

// HandleGitHubCallback exchanges a GitHub authorization code, upserts the
// user's credential bundle, and issues a session token embedding the
// GitHub access token.
func (b *Broker) HandleGitHubCallback(ctx context.Context, code string) (string, store.Identity, error) {
	if code == "" {
		return "", store.Identity{}, ErrMissingCode
	}

	accessToken, err := b.github.ExchangeCode(ctx, code)
	if err != nil {
		log.Errorf("GitHub code exchange failed: %v", err)
		return "", store.Identity{}, WithCause(ErrExchangeFailed, err)
	}

	user, err := b.github.FetchUser(ctx, accessToken)
	if err != nil {
		log.Errorf("GitHub user fetch failed: %v", err)
		return "", store.Identity{}, WithCause(ErrIdentityFetchFailed, err)
	}

	email := user.Email
	if email == "" {
		// GitHub hides non-public emails from the user endpoint.
		email = user.Login + "@users.noreply.github.com"
	}

	identity := store.Identity{
		ID:       strconv.FormatInt(user.ID, 10),
		Username: user.Login,
		Email:    email,
		Provider: store.ProviderGitHub,
	}

	b.upsertBundle(identity, func(bundle *store.CredentialBundle) {
		bundle.AccessToken = accessToken
		bundle.RefreshToken = ""
	})

	token, err := b.sessions.Issue(session.Claims{
		UserID:      identity.ID,
		Username:    identity.Username,
		Email:       identity.Email,
		Provider:    store.ProviderGitHub,
		GitHubToken: accessToken,
	})
	if err != nil {
		return "", store.Identity{}, WithCause(ErrExchangeFailed, err)
	}

	log.Infof("GitHub login for user %s (%s)", identity.Username, identity.ID)
	return token, identity, nil
}

// OpenAIAuthURL stages a fresh PKCE entry and returns the authorization
// URL and state. Stale staged entries are swept on every call; there is
// no background eviction.
func (b *Broker) OpenAIAuthURL() (string, string, error) {
	if removed := b.staging.SweepExpired(); removed > 0 {
		log.Debugf("swept %d expired PKCE entries", removed)
	}

	state, err := pkce.NewState()
	if err != nil {
		return "", "", WithCause(ErrExchangeFailed, err)
	}
	codes, err := pkce.Generate()
	if err != nil {
		return "", "", WithCause(ErrExchangeFailed, err)
	}

	authURL, err := b.openai.AuthorizationURL(state, codes)
	if err != nil {
		return "", "", WithCause(ErrExchangeFailed, err)
	}

	b.staging.Put(state, codes.Verifier)
	return authURL, state, nil
}

// HandleOpenAICallback consumes the PKCE entry for state, exchanges the
// authorization code, decodes the identity token, upserts the credential
// bundle, and issues a session token. The staged entry is deleted on
// first use, so a replayed state fails closed.
func (b *Broker) HandleOpenAICallback(ctx context.Context, code, state string) (string, error) {
	if code == "" || state == "" {
		return "", ErrMissingCodeOrState
	}

	entry, ok := b.staging.Take(state)
	if !ok {
		return "", ErrInvalidState
	}

	bundle, err := b.openai.ExchangeCode(ctx, code, entry.Verifier)
	if err != nil {
		log.Errorf("OpenAI code exchange failed: %v", err)
		return "", WithCause(ErrExchangeFailed, err)
	}

	claims, err := openai.ParseIDToken(bundle.IDToken)
	if err != nil {
		log.Errorf("OpenAI ID token parse failed: %v", err)
		return "", WithCause(ErrIdentityFetchFailed, err)
	}

	identity := store.Identity{
		ID:       claims.Sub,
		Username: claims.DisplayName(),
		Email:    claims.Email,
		Provider: store.ProviderOpenAI,
	}

	expiry := bundle.Expiry(timeNow())
	b.upsertBundle(identity, func(stored *store.CredentialBundle) {
		stored.AccessToken = bundle.AccessToken
		stored.RefreshToken = bundle.RefreshToken
		stored.AccessTokenExpiry = expiry
	})

	token, err := b.sessions.Issue(session.Claims{
		UserID:   identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		Provider: store.ProviderOpenAI,
	})
	if err != nil {
		return "", WithCause(ErrExchangeFailed, err)
	}

	log.Infof("OpenAI login for user %s (%s)", identity.Username, identity.ID)
	return token, nil
}

// upsertBundle creates or updates the credential bundle for identity,
// refreshing identity fields and applying mutate while preserving the
// user's model selection across logins.
func (b *Broker) upsertBundle(identity store.Identity, mutate func(*store.CredentialBundle)) {
	if updated := b.creds.Update(identity.ID, func(bundle *store.CredentialBundle) {
		bundle.Identity = identity
		mutate(bundle)
	}); updated {
		return
	}

	bundle := &store.CredentialBundle{Identity: identity}
	mutate(bundle)
	b.creds.Upsert(identity.ID, bundle)
}

// SelectModel records the user's completion model choice. An empty model
// resets to the default. Model names are not validated here; an invalid
// name surfaces when the next AI request reaches the upstream.
func (b *Broker) SelectModel(userID, model string) (string, error) {
	if model == "" {
		model = DefaultModel
	}
	if ok := b.creds.Update(userID, func(bundle *store.CredentialBundle) {
		bundle.SelectedModel = model
	}); !ok {
		return "", ErrUserNotFound
	}
	return model, nil
}

// Profile is the sanitized user view returned by the API. Tokens never
// appear here, only presence flags.
type Profile struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Provider       string `json:"provider"`
	HasGitHubToken bool   `json:"hasGitHubToken"`
	HasOpenAIToken bool   `json:"hasOpenAIToken"`
	IsConfigured   bool   `json:"isConfigured"`
}

// UserProfile returns the sanitized profile for a user ID.
func (b *Broker) UserProfile(userID string) (*Profile, error) {
	bundle, ok := b.creds.Get(userID)
	if !ok {
		return nil, ErrUserNotFound
	}

	hasGitHub := bundle.Identity.Provider == store.ProviderGitHub && bundle.AccessToken != ""
	hasOpenAI := bundle.Identity.Provider == store.ProviderOpenAI && bundle.AccessToken != ""
	return &Profile{
		UserID:         bundle.Identity.ID,
		Username:       bundle.Identity.Username,
		Email:          bundle.Identity.Email,
		Provider:       bundle.Identity.Provider,
		HasGitHubToken: hasGitHub,
		HasOpenAIToken: hasOpenAI,
		IsConfigured:   hasGitHub || hasOpenAI,
	}, nil
}

// DeepLink builds the redirect URL handing a session token back to the
// desktop client. providerMarker, when non-empty, is appended so the
// client can tell which flow completed.
func (b *Broker) DeepLink(token, providerMarker string) string {
	link := b.cfg.AppDeepLink + "?token=" + token
	if providerMarker != "" {
		link += "&provider=" + providerMarker
	}
	return link
}
