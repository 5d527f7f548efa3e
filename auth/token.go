// Package auth implements the Whoop OAuth2 token lifecycle: interactive
// authorization, code exchange, refresh, and token persistence across file
// and database backends.
//
// Whoop requires the 'offline' scope to issue refresh tokens, and rotates
// the refresh token on every refresh grant. The old refresh token must not
// be reused after a successful refresh.
package auth

import (
	"time"
)

// Whoop OAuth2 endpoints.
const (
	AuthorizeURL = "https://api.prod.whoop.com/oauth/oauth2/auth"
	TokenURL     = "https://api.prod.whoop.com/oauth/oauth2/token"
)

// AllScopes is the full Whoop scope set. 'offline' is required for refresh
// tokens.
var AllScopes = []string{
	"offline",
	"read:profile",
	"read:body_measurement",
	"read:cycles",
	"read:recovery",
	"read:sleep",
	"read:workout",
}

const (
	// expiryBuffer keeps consumers from presenting a token that expires
	// mid-flight.
	expiryBuffer = 5 * time.Minute

	// defaultExpiresIn is assumed when the provider omits expires_in.
	defaultExpiresIn = 3600 * time.Second
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Token is an OAuth2 access/refresh token pair. A Token is either fully
// present or absent - partial tokens are never persisted.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// IsExpired reports whether the access token is expired, applying a five
// minute safety buffer.
func (t *Token) IsExpired() bool {
	return !NowTimeFunc().Before(t.ExpiresAt.Add(-expiryBuffer))
}

// tokenResponse is the provider's token endpoint response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// newToken builds a Token from a token endpoint response, computing the
// absolute expiry from expires_in (default 1h).
func newToken(resp tokenResponse) *Token {
	expiresIn := defaultExpiresIn
	if resp.ExpiresIn > 0 {
		expiresIn = time.Duration(resp.ExpiresIn) * time.Second
	}
	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    NowTimeFunc().UTC().Add(expiresIn),
		TokenType:    tokenType,
	}
}
