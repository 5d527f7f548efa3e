// Package config loads application configuration from environment variables.
// All settings use the WHOOP_ prefix; a .env file is honoured when present
// (loaded by main before Load is called).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all settings for the scraper. It is constructed once at
// process start and passed into each component constructor.
type Config struct {
	// Database settings
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	// Whoop OAuth2 settings
	ClientID     string
	ClientSecret string

	// Bootstrap tokens for containerized deployments. When set, stores
	// treat them as an initial credential that is refreshed and persisted
	// on first use.
	AccessToken  string
	RefreshToken string

	// TokenPath overrides the default token file location.
	TokenPath string

	// EncryptionKey enables at-rest encryption of tokens in the database.
	// Base64-encoded 32-byte key, or a raw 32-character string.
	EncryptionKey string

	// ScrapeDays is the default window length in days.
	ScrapeDays int

	LogLevel string
}

// Load creates a Config from environment variables. Call Validate before use.
func Load() *Config {
	return &Config{
		DBHost:     getEnv("WHOOP_DB_HOST", "localhost"),
		DBPort:     getEnv("WHOOP_DB_PORT", "5432"),
		DBName:     getEnv("WHOOP_DB_NAME", "health"),
		DBUser:     getEnv("WHOOP_DB_USER", "health"),
		DBPassword: getEnv("WHOOP_DB_PASSWORD", ""),

		ClientID:     getEnv("WHOOP_CLIENT_ID", ""),
		ClientSecret: getEnv("WHOOP_CLIENT_SECRET", ""),
		AccessToken:  getEnv("WHOOP_ACCESS_TOKEN", ""),
		RefreshToken: getEnv("WHOOP_REFRESH_TOKEN", ""),
		TokenPath:    getEnv("WHOOP_TOKEN_PATH", ""),

		EncryptionKey: getEnv("WHOOP_ENCRYPTION_KEY", ""),

		ScrapeDays: getIntEnv("WHOOP_SCRAPE_DAYS", 7),
		LogLevel:   getEnv("WHOOP_LOG_LEVEL", "info"),
	}
}

// Validate checks field formats and cross-field requirements.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.DBPort); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("WHOOP_DB_PORT must be a valid port number")
	}
	if c.DBName == "" {
		return fmt.Errorf("WHOOP_DB_NAME is required")
	}
	if c.DBUser == "" {
		return fmt.Errorf("WHOOP_DB_USER is required")
	}
	if c.ScrapeDays < 1 {
		return fmt.Errorf("WHOOP_SCRAPE_DAYS must be a positive number")
	}
	if (c.AccessToken == "") != (c.RefreshToken == "") {
		return fmt.Errorf("WHOOP_ACCESS_TOKEN and WHOOP_REFRESH_TOKEN must be set together")
	}
	return nil
}

// DatabaseURL constructs the PostgreSQL connection URL.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// DefaultTokenPath returns the token file location used when WHOOP_TOKEN_PATH
// is not set: ~/.config/whoop-scraper/tokens.json.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "whoop-scraper", "tokens.json")
}

func getEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
