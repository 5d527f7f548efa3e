package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"whoopsync/internal/config"
	errs "whoopsync/internal/errors"
)

// TokenStore is the persistence abstraction for OAuth tokens. Load returns
// (nil, nil) when no token is stored.
type TokenStore interface {
	Save(ctx context.Context, tok *Token) error
	Load(ctx context.Context) (*Token, error)
	Clear(ctx context.Context) error
}

// FileStore persists tokens as a JSON file with owner-only permissions.
//
// Load prefers bootstrap tokens injected via environment variables over the
// file, synthesizing a long-lived expiry since no real expiry is known.
type FileStore struct {
	path             string
	bootstrapAccess  string
	bootstrapRefresh string
}

// NewFileStore creates a file-backed token store. The path defaults to
// ~/.config/whoop-scraper/tokens.json unless overridden in the config.
func NewFileStore(cfg *config.Config) *FileStore {
	path := cfg.TokenPath
	if path == "" {
		path = config.DefaultTokenPath()
	}
	return &FileStore{
		path:             path,
		bootstrapAccess:  cfg.AccessToken,
		bootstrapRefresh: cfg.RefreshToken,
	}
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the token to the file, creating parent directories as needed
// and restricting permissions to owner read/write.
func (s *FileStore) Save(_ context.Context, tok *Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errs.Wrapf(err, "creating token directory")
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return errs.Wrapf(err, "encoding tokens")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errs.Wrapf(err, "writing token file")
	}
	// WriteFile only applies the mode on create; tighten pre-existing files.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return errs.Wrapf(err, "restricting token file permissions")
	}
	log.Info().Str("path", s.path).Msg("Tokens saved")
	return nil
}

// Load reads tokens from environment bootstrap variables or the file.
// Malformed file content is logged and treated as absent.
func (s *FileStore) Load(_ context.Context) (*Token, error) {
	if s.bootstrapAccess != "" && s.bootstrapRefresh != "" {
		log.Debug().Msg("Loading tokens from environment variables")
		return &Token{
			AccessToken:  s.bootstrapAccess,
			RefreshToken: s.bootstrapRefresh,
			ExpiresAt:    NowTimeFunc().UTC().Add(365 * 24 * time.Hour),
			TokenType:    "bearer",
		}, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrapf(err, "reading token file")
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Failed to load tokens")
		return nil, nil
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		log.Warn().Str("path", s.path).Msg("Token file is incomplete, ignoring")
		return nil, nil
	}
	return &tok, nil
}

// Clear deletes the token file if it exists.
func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(err, "removing token file")
	}
	log.Info().Msg("Tokens cleared")
	return nil
}
