package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"whoopsync/internal/config"
	errs "whoopsync/internal/errors"
)

const (
	stateLength          = 32 // bytes of entropy in the state nonce
	defaultListenTimeout = 300 * time.Second
)

// Manager owns the OAuth2 token lifecycle: authorization-code exchange,
// refresh, validity checking, and the interactive authorization flow. It
// composes a TokenStore and the local callback listener.
//
// All public methods serialize on an internal mutex so concurrent callers
// sharing one Manager cannot race two refreshes and invalidate each other's
// rotated refresh token.
type Manager struct {
	clientID      string
	clientSecret  string
	store         TokenStore
	httpClient    *http.Client
	authorizeURL  string
	tokenURL      string
	listenTimeout time.Duration
	openBrowser   func(url string) error

	mu     sync.Mutex
	cached *Token
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient sets the HTTP client used for token endpoint requests.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = client }
}

// WithEndpoints overrides the provider endpoints (primarily for testing).
func WithEndpoints(authorizeURL, tokenURL string) ManagerOption {
	return func(m *Manager) {
		m.authorizeURL = authorizeURL
		m.tokenURL = tokenURL
	}
}

// WithListenTimeout sets the interactive authorization timeout.
func WithListenTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.listenTimeout = d }
}

// WithBrowserOpener sets the function used to open the system browser.
func WithBrowserOpener(open func(url string) error) ManagerOption {
	return func(m *Manager) { m.openBrowser = open }
}

// NewManager creates a token lifecycle manager using the given store.
func NewManager(cfg *config.Config, store TokenStore, options ...ManagerOption) *Manager {
	m := &Manager{
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		store:         store,
		httpClient:    http.DefaultClient,
		authorizeURL:  AuthorizeURL,
		tokenURL:      TokenURL,
		listenTimeout: defaultListenTimeout,
		openBrowser:   openSystemBrowser,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Manager) oauth2Config(redirectURI string, scopes []string) *oauth2.Config {
	if scopes == nil {
		scopes = AllScopes
	}
	return &oauth2.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.authorizeURL,
			TokenURL:  m.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationURL builds the provider authorization URL with a freshly
// generated state nonce. Scopes default to the full scope set, which
// includes 'offline' so a refresh token is issued.
func (m *Manager) AuthorizationURL(redirectURI string, scopes []string) (authURL, state string, err error) {
	state, err = randomState()
	if err != nil {
		return "", "", errs.Wrapf(err, "generating state nonce")
	}
	return m.oauth2Config(redirectURI, scopes).AuthCodeURL(state), state, nil
}

// ExchangeCode exchanges an authorization code for tokens, persists them,
// and updates the in-memory cache.
func (m *Manager) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchangeCode(ctx, code, redirectURI)
}

func (m *Manager) exchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	oauthToken, err := m.oauth2Config(redirectURI, nil).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTokenExchangeFailed, err)
	}

	tok := &Token{
		AccessToken:  oauthToken.AccessToken,
		RefreshToken: oauthToken.RefreshToken,
		ExpiresAt:    oauthToken.Expiry.UTC(),
		TokenType:    strings.ToLower(oauthToken.TokenType),
	}
	if oauthToken.Expiry.IsZero() {
		tok.ExpiresAt = NowTimeFunc().UTC().Add(defaultExpiresIn)
	}
	if tok.TokenType == "" {
		tok.TokenType = "bearer"
	}
	if err := m.store.Save(ctx, tok); err != nil {
		return nil, err
	}
	m.cached = tok
	log.Info().Msg("Authorization successful, tokens stored")
	return tok, nil
}

// RefreshTokens refreshes the access token. When refreshToken is empty the
// currently stored token is used. Both tokens rotate: the old refresh token
// is invalid the moment this succeeds.
func (m *Manager) RefreshTokens(ctx context.Context, refreshToken string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if refreshToken == "" {
		stored, err := m.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, errs.ErrNoStoredCredentials
		}
		refreshToken = stored.RefreshToken
	}
	return m.refresh(ctx, refreshToken)
}

// refresh performs the refresh grant. Callers must hold m.mu.
//
// The scope list is sent explicitly because Whoop only reissues a refresh
// token when the 'offline' scope is requested on the refresh grant.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"scope":         {strings.Join(AllScopes, " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.Wrapf(err, "building refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", errs.ErrRefreshFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", errs.ErrRefreshFailed, resp.StatusCode, string(body))
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", errs.ErrRefreshFailed, err)
	}

	tok := newToken(tr)
	if err := m.store.Save(ctx, tok); err != nil {
		return nil, err
	}
	m.cached = tok
	log.Info().Msg("Tokens refreshed successfully")
	return tok, nil
}

// GetValidToken returns a non-expired access token, loading from storage and
// refreshing as needed. This is the single choke point for every API call.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && !m.cached.IsExpired() {
		return m.cached.AccessToken, nil
	}

	tok, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", errs.ErrNotAuthenticated
	}
	if tok.IsExpired() {
		log.Info().Msg("Access token expired, refreshing")
		tok, err = m.refresh(ctx, tok.RefreshToken)
		if err != nil {
			return "", err
		}
	}
	m.cached = tok
	return tok.AccessToken, nil
}

// AuthorizeInteractive runs the full interactive authorization flow: start
// the local callback listener, surface the authorization URL (optionally in
// the system browser), wait for the redirect, validate state, and exchange
// the code. The listener socket is released on every exit path.
func (m *Manager) AuthorizeInteractive(ctx context.Context, port int, openBrowser bool) (*Token, error) {
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", port)
	authURL, expectedState, err := m.AuthorizationURL(redirectURI, nil)
	if err != nil {
		return nil, err
	}

	server := newCallbackServer(port)
	if err := server.start(); err != nil {
		return nil, err
	}
	defer server.shutdown()

	log.Info().Msg("Opening browser for authorization")
	log.Info().Str("url", authURL).Msg("If the browser does not open, visit the URL manually")
	if openBrowser {
		if err := m.openBrowser(authURL); err != nil {
			log.Warn().Err(err).Msg("Failed to open browser, complete the flow manually")
		}
	}

	select {
	case res := <-server.result:
		if res.errParam != "" {
			return nil, fmt.Errorf("%w: %s", errs.ErrAuthorizationDenied, res.errParam)
		}
		// The state check is mandatory and short-circuits before any
		// token exchange.
		if res.state != expectedState {
			return nil, errs.ErrStateMismatch
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.exchangeCode(ctx, res.code, redirectURI)
	case <-time.After(m.listenTimeout):
		return nil, errs.ErrAuthorizationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// randomState generates a cryptographically random URL-safe state nonce with
// 256 bits of entropy.
func randomState() (string, error) {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func openSystemBrowser(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u).Start()
	default:
		return exec.Command("xdg-open", u).Start()
	}
}
