package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"whoopsync/db"
	errs "whoopsync/internal/errors"
)

// DBStore persists tokens in a single-row PostgreSQL table so they survive
// container restarts and token refreshes. Token strings are encrypted at
// rest when a cipher is configured.
//
// Load tries the database first and falls back to environment bootstrap
// tokens only when the database has no row. Bootstrap tokens are returned
// already expired so the next GetValidToken call refreshes and persists
// them, converting the bootstrap credential into a durably stored one.
type DBStore struct {
	db               db.DBTX
	cipher           *TokenCipher
	bootstrapAccess  string
	bootstrapRefresh string
}

// NewDBStore creates a database-backed token store. cipher may be nil to
// store tokens in plaintext. bootstrapAccess and bootstrapRefresh are the
// optional environment-injected credentials.
func NewDBStore(conn db.DBTX, cipher *TokenCipher, bootstrapAccess, bootstrapRefresh string) *DBStore {
	return &DBStore{
		db:               conn,
		cipher:           cipher,
		bootstrapAccess:  bootstrapAccess,
		bootstrapRefresh: bootstrapRefresh,
	}
}

const upsertTokenSQL = `
INSERT INTO whoop_oauth_tokens
    (id, access_token, refresh_token, expires_at, token_type, updated_at)
VALUES (1, $1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at = EXCLUDED.expires_at,
    token_type = EXCLUDED.token_type,
    updated_at = NOW()`

// Save upserts the singleton token row. Errors are fatal.
func (s *DBStore) Save(ctx context.Context, tok *Token) error {
	accessToken, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: encrypting access token: %w", errs.ErrPersistence, err)
	}
	refreshToken, err := s.cipher.Encrypt(tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: encrypting refresh token: %w", errs.ErrPersistence, err)
	}
	if _, err := s.db.Exec(ctx, upsertTokenSQL, accessToken, refreshToken, tok.ExpiresAt, tok.TokenType); err != nil {
		return fmt.Errorf("%w: saving tokens: %w", errs.ErrPersistence, err)
	}
	log.Info().Bool("encrypted", s.cipher != nil).Msg("Tokens saved to database")
	return nil
}

// Load reads the singleton token row, falling back to bootstrap env tokens.
// Database errors are logged and treated as absent rather than fatal.
func (s *DBStore) Load(ctx context.Context) (*Token, error) {
	var (
		accessToken  string
		refreshToken string
		expiresAt    time.Time
		tokenType    *string
	)
	err := s.db.QueryRow(ctx,
		`SELECT access_token, refresh_token, expires_at, token_type FROM whoop_oauth_tokens WHERE id = 1`,
	).Scan(&accessToken, &refreshToken, &expiresAt, &tokenType)
	switch {
	case err == nil:
		access, decErr := s.cipher.Decrypt(accessToken)
		if decErr == nil {
			var refresh string
			if refresh, decErr = s.cipher.Decrypt(refreshToken); decErr == nil {
				tt := "bearer"
				if tokenType != nil && *tokenType != "" {
					tt = *tokenType
				}
				return &Token{
					AccessToken:  access,
					RefreshToken: refresh,
					ExpiresAt:    expiresAt,
					TokenType:    tt,
				}, nil
			}
		}
		log.Warn().Err(decErr).Msg("Failed to decrypt stored tokens, treating as absent")
	case err == pgx.ErrNoRows:
		// No row yet, fall through to bootstrap.
	default:
		log.Warn().Err(err).Msg("Failed to load tokens from database")
	}

	if s.bootstrapAccess != "" && s.bootstrapRefresh != "" {
		log.Debug().Msg("Loading bootstrap tokens from environment variables")
		// Returned expired so the next use refreshes and persists to the
		// database.
		return &Token{
			AccessToken:  s.bootstrapAccess,
			RefreshToken: s.bootstrapRefresh,
			ExpiresAt:    NowTimeFunc().UTC(),
			TokenType:    "bearer",
		}, nil
	}
	return nil, nil
}

// Clear deletes the singleton token row. Errors are fatal.
func (s *DBStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM whoop_oauth_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: clearing tokens: %w", errs.ErrPersistence, err)
	}
	log.Info().Msg("Tokens cleared from database")
	return nil
}
