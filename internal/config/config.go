// Package config reads the server configuration from environment variables.
// cmd/server loads an optional .env file before calling Load.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSecretLength = 16

type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
	// RedisURL selects the shared revocation list; empty keeps it in memory.
	RedisURL string
	// AdminUsernames are granted admin rights when they register.
	AdminUsernames []string
	LogLevel       slog.Level
	// GitHub sign-in is enabled only when client id and secret are both set.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// GitHubEnabled reports whether the GitHub routes should be registered.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load builds a Config from the environment. Unset values take defaults;
// malformed values and a missing or short JWT_SECRET are errors.
func Load() (Config, error) {
	var errs []error

	port, err := getenvInt("PORT", 8080)
	errs = append(errs, err)
	ttl, err := getenvDuration("TOKEN_TTL", 30*time.Minute)
	errs = append(errs, err)
	level, err := getenvLevel("LOG_LEVEL", slog.LevelInfo)
	errs = append(errs, err)

	cfg := Config{
		Port:               port,
		DBPath:             getenv("DB_PATH", "data/forum.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           ttl,
		RedisURL:           getenv("REDIS_URL", ""),
		AdminUsernames:     getenvList("ADMIN_USERNAMES"),
		LogLevel:           level,
		GitHubClientID:     getenv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  getenv("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
	}

	if len(cfg.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be set to at least %d characters", minSecretLength))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	return cfg, errors.Join(errs...)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return parsed, nil
}

// getenvDuration accepts Go durations ("45m") and bare seconds ("900").
func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}

func getenvLevel(key string, fallback slog.Level) (slog.Level, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return level, nil
}

// getenvList splits a comma-separated value, dropping empty items.
func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
