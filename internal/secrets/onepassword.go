package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/1Password/connect-sdk-go/connect"
	"github.com/1Password/connect-sdk-go/onepassword"
)

// OnePasswordResolver reads secrets from a 1Password vault through the
// Connect API. Each secret is an item whose title is the secret name and
// whose value lives in a field labeled "credential" (with "password" and
// "url" accepted as fallbacks).
//
// Configuration is via environment variables:
//   - OP_CONNECT_HOST: URL of the 1Password Connect server
//   - OP_CONNECT_TOKEN: Access token for the Connect server
//   - OP_VAULT_ID: UUID of the vault holding the secrets
type OnePasswordResolver struct {
	client  connect.Client
	vaultID string
	logger  *slog.Logger

	// Cache to avoid repeated API calls
	mu    sync.RWMutex
	cache map[string]string
}

// OnePasswordConfig holds configuration for 1Password Connect.
type OnePasswordConfig struct {
	Host    string // OP_CONNECT_HOST
	Token   string // OP_CONNECT_TOKEN
	VaultID string // OP_VAULT_ID
}

// Field labels checked for the secret value, in order.
var valueLabels = []string{"credential", "password", "url"}

// NewOnePasswordResolver creates a new 1Password-backed resolver.
func NewOnePasswordResolver(cfg OnePasswordConfig, logger *slog.Logger) (*OnePasswordResolver, error) {
	if cfg.Host == "" || cfg.Token == "" || cfg.VaultID == "" {
		return nil, fmt.Errorf("1Password configuration incomplete: host, token, and vault_id are required")
	}

	client := connect.NewClientWithUserAgent(cfg.Host, cfg.Token, "alertconv")

	return &OnePasswordResolver{
		client:  client,
		vaultID: cfg.VaultID,
		logger:  logger,
		cache:   make(map[string]string),
	}, nil
}

// Resolve returns the named secret's value, or "" when no item with that
// title exists in the vault.
func (r *OnePasswordResolver) Resolve(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	if cached, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	items, err := r.client.GetItemsByTitle(name, r.vaultID)
	if err != nil {
		if isNotFoundError(err) {
			return "", nil
		}
		return "", fmt.Errorf("listing items: %w", err)
	}
	if len(items) == 0 {
		return "", nil
	}

	// Get the full item (including fields)
	item, err := r.client.GetItem(items[0].ID, r.vaultID)
	if err != nil {
		return "", fmt.Errorf("getting item: %w", err)
	}

	value := itemValue(item)
	if value == "" {
		r.logger.Warn("1Password item has no credential field", "item", name)
		return "", nil
	}

	r.mu.Lock()
	r.cache[name] = value
	r.mu.Unlock()

	return value, nil
}

// Close clears the in-memory cache.
func (r *OnePasswordResolver) Close() error {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
	return nil
}

// itemValue extracts the secret value from an item's fields.
func itemValue(item *onepassword.Item) string {
	for _, label := range valueLabels {
		for _, field := range item.Fields {
			if field != nil && strings.EqualFold(field.Label, label) && field.Value != "" {
				return field.Value
			}
		}
	}
	return ""
}

// isNotFoundError reports whether the Connect API returned a 404.
func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404")
}
