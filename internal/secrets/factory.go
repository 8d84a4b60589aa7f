package secrets

import (
	"fmt"
	"log/slog"
	"os"
)

// Config holds configuration for the secrets backend.
type Config struct {
	// Backend specifies which backend to use: "1password", "env", or "auto".
	// "auto" (default) uses 1Password when the Connect variables are set,
	// otherwise the environment.
	Backend string

	// 1Password Connect configuration.
	OnePasswordHost  string
	OnePasswordToken string
	OnePasswordVault string
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Backend:          getEnv("ALERTCONV_SECRETS_BACKEND", "auto"),
		OnePasswordHost:  os.Getenv("OP_CONNECT_HOST"),
		OnePasswordToken: os.Getenv("OP_CONNECT_TOKEN"),
		OnePasswordVault: os.Getenv("OP_VAULT_ID"),
	}
}

// NewResolver creates a Resolver based on configuration.
func NewResolver(cfg Config, logger *slog.Logger) (Resolver, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "auto"
	}

	switch backend {
	case "1password":
		return NewOnePasswordResolver(OnePasswordConfig{
			Host:    cfg.OnePasswordHost,
			Token:   cfg.OnePasswordToken,
			VaultID: cfg.OnePasswordVault,
		}, logger)

	case "env":
		return NewEnvResolver(), nil

	case "auto":
		// Try 1Password first, fall back to the environment
		if cfg.OnePasswordHost != "" && cfg.OnePasswordToken != "" {
			r, err := NewOnePasswordResolver(OnePasswordConfig{
				Host:    cfg.OnePasswordHost,
				Token:   cfg.OnePasswordToken,
				VaultID: cfg.OnePasswordVault,
			}, logger)
			if err != nil {
				logger.Warn("failed to initialize 1Password, falling back to environment secrets",
					"error", err)
				return NewEnvResolver(), nil
			}
			return r, nil
		}
		logger.Info("OP_CONNECT_HOST not set, using environment secrets")
		return NewEnvResolver(), nil

	default:
		return nil, fmt.Errorf("unknown secrets backend: %s", backend)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
