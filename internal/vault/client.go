// Package vault reads provider secrets (LLM API keys) from HashiCorp
// Vault KV v2. When Vault is disabled the bot falls back to environment
// configuration.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config holds Vault connection settings.
type Config struct {
	Enabled   bool
	Address   string
	Token     string
	MountPath string
}

// Client wraps the HashiCorp Vault client with a small read cache.
type Client struct {
	client *api.Client
	cfg    Config

	mu    sync.RWMutex
	cache map[string]string
}

// NewClient creates a Vault client. A disabled config yields a client
// whose lookups always miss.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{cfg: cfg, cache: make(map[string]string)}
	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	c.client = client
	return c, nil
}

// Enabled reports whether the client talks to a real Vault.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.client != nil
}

// GetSecret reads field from the KV v2 secret at path (relative to the
// mount), caching successful reads for the process lifetime.
func (c *Client) GetSecret(ctx context.Context, path, field string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("vault is disabled")
	}

	key := path + "#" + field
	c.mu.RLock()
	if v, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	mount := c.cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	fullPath := fmt.Sprintf("%s/data/%s", mount, path)

	secret, err := c.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %s not found", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("secret %s has no KV v2 data block", path)
	}
	value, ok := data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %s has no field %q", path, field)
	}

	c.mu.Lock()
	c.cache[key] = value
	c.mu.Unlock()
	return value, nil
}

// GetLLMAPIKey reads the LLM provider key from the conventional path
// priceaction/llm.
func (c *Client) GetLLMAPIKey(ctx context.Context, provider string) (string, error) {
	return c.GetSecret(ctx, "priceaction/llm", provider+"_api_key")
}
