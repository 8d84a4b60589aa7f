// Package secrets resolves runtime credentials such as the database and
// Redis URLs.
//
// This package defines a Resolver interface for looking up named secrets.
// The primary implementation uses 1Password Connect for production
// environments, with an environment-variable fallback for development.
package secrets

import (
	"context"
	"os"
	"strings"
)

// Well-known secret names.
const (
	SecretDatabaseURL = "database_url"
	SecretRedisURL    = "redis_url"
)

// Resolver looks up named secrets. Resolve returns "" (no error) when the
// backend has no value for the name, so callers can layer fallbacks.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)

	// Close releases any resources held by the resolver.
	Close() error
}

// EnvResolver reads secrets from ALERTCONV_SECRET_* environment variables.
// The name "database_url" maps to ALERTCONV_SECRET_DATABASE_URL.
type EnvResolver struct{}

// NewEnvResolver returns a resolver backed by the process environment.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

// Resolve returns the environment value for the name, or "" when unset.
func (r *EnvResolver) Resolve(_ context.Context, name string) (string, error) {
	return os.Getenv(envKeyFor(name)), nil
}

// Close is a no-op for the environment backend.
func (r *EnvResolver) Close() error { return nil }

// envKeyFor converts a secret name into its environment variable key.
func envKeyFor(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return "ALERTCONV_SECRET_" + key
}
