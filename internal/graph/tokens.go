package graph

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/csflash/flashsync/internal/statestore"
)

// tokenSafetyMargin is subtracted from the provider-declared access token
// lifetime before caching, so the token is always refreshed before the
// provider would reject it mid-cycle.
const tokenSafetyMargin = 300 * time.Second

// refreshTokenTTL is the cache lifetime for refresh tokens. The provider
// does not declare one; 30 days matches its documented rolling window.
const refreshTokenTTL = 30 * 24 * time.Hour

// minTokenTTL is the floor for cached access token lifetimes after the
// safety margin is applied. Entries are never stored without expiry.
const minTokenTTL = time.Second

// AuthConfig holds the OAuth2 application settings for TokenManager.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	Scope        string // space-separated
}

// TokenManager owns the access/refresh token pair. Tokens live in the
// state store under well-known keys so the lifetime survives process
// restarts; callers never talk to the token endpoint directly.
//
// Not safe for concurrent orchestrator instances; the deployment relies
// on non-overlapping scheduling.
type TokenManager struct {
	oauth      oauth2.Config
	store      statestore.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTokenManager builds a TokenManager for the given app registration.
func NewTokenManager(cfg AuthConfig, store statestore.Store, httpClient *http.Client, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenManager{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
		},
		store:      store,
		httpClient: httpClient,
		logger:     logger,
	}
}

// AuthURL returns the provider authorization URL the operator opens to
// obtain an authorization code.
func (m *TokenManager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// ExchangeCode posts the authorization code to the token endpoint and
// caches the resulting token pair. On a provider rejection the returned
// error is an *AuthError carrying the provider's description.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) error {
	tok, err := m.oauth.Exchange(m.httpCtx(ctx), code)
	if err != nil {
		return authErrorFrom(err)
	}

	m.logger.Info("authorization code exchanged",
		slog.Time("expiry", tok.Expiry),
		slog.Bool("has_refresh_token", tok.RefreshToken != ""),
	)

	return m.cacheToken(ctx, tok)
}

// Refresh performs one refresh-grant attempt. Returns false when no
// refresh token is cached or the grant fails; a failed grant evicts both
// cached tokens so the next call surfaces "not authenticated" instead of
// retrying a dead refresh token forever.
func (m *TokenManager) Refresh(ctx context.Context) bool {
	refreshToken, err := m.store.Get(ctx, statestore.RefreshTokenKey)
	if err != nil {
		if !errors.Is(err, statestore.ErrNotFound) {
			m.logger.Warn("reading refresh token", slog.String("error", err.Error()))
		} else {
			m.logger.Warn("no refresh token cached, login required")
		}

		return false
	}

	src := m.oauth.TokenSource(m.httpCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		m.logger.Warn("token refresh failed, evicting cached tokens",
			slog.String("error", err.Error()),
		)

		// Eviction forces re-authentication rather than endless refresh
		// attempts against a revoked grant.
		_ = m.store.Forget(ctx, statestore.AccessTokenKey)
		_ = m.store.Forget(ctx, statestore.RefreshTokenKey)

		return false
	}

	if err := m.cacheToken(ctx, tok); err != nil {
		m.logger.Warn("caching refreshed token", slog.String("error", err.Error()))
		return false
	}

	m.logger.Info("access token refreshed", slog.Time("expiry", tok.Expiry))

	return true
}

// ValidToken returns the cached access token, attempting exactly one
// refresh when it is absent or expired. Returns ErrNotAuthenticated when
// neither path yields a token.
func (m *TokenManager) ValidToken(ctx context.Context) (string, error) {
	tok, err := m.store.Get(ctx, statestore.AccessTokenKey)
	if err == nil {
		return tok, nil
	}

	if !errors.Is(err, statestore.ErrNotFound) {
		return "", err
	}

	if !m.Refresh(ctx) {
		return "", ErrNotAuthenticated
	}

	tok, err = m.store.Get(ctx, statestore.AccessTokenKey)
	if err != nil {
		return "", ErrNotAuthenticated
	}

	return tok, nil
}

// Token implements TokenSource for Client.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	return m.ValidToken(ctx)
}

// Logout evicts both cached tokens.
func (m *TokenManager) Logout(ctx context.Context) error {
	if err := m.store.Forget(ctx, statestore.AccessTokenKey); err != nil {
		return err
	}

	return m.store.Forget(ctx, statestore.RefreshTokenKey)
}

// cacheToken stores both halves of the pair: the access token with the
// provider lifetime minus the safety margin, the refresh token (when the
// provider issued one) with the rolling-window TTL.
func (m *TokenManager) cacheToken(ctx context.Context, tok *oauth2.Token) error {
	ttl := time.Until(tok.Expiry) - tokenSafetyMargin
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}

	if err := m.store.Put(ctx, statestore.AccessTokenKey, tok.AccessToken, ttl); err != nil {
		return err
	}

	if tok.RefreshToken != "" {
		if err := m.store.Put(ctx, statestore.RefreshTokenKey, tok.RefreshToken, refreshTokenTTL); err != nil {
			return err
		}
	}

	return nil
}

// httpCtx binds the manager's HTTP client into ctx for the oauth2 library.
func (m *TokenManager) httpCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// authErrorFrom converts an oauth2 exchange failure into *AuthError,
// surfacing the provider's error description when present.
func authErrorFrom(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		desc := re.ErrorDescription
		if desc == "" {
			desc = string(re.Body)
		}

		return &AuthError{Description: desc}
	}

	return &AuthError{Description: err.Error()}
}
