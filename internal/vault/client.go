// Package vault is a minimal HashiCorp Vault client for the KV v2 secrets
// engine, used to keep SafeKart sessions in a shared secret store.
package vault

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/safekart/safekart/internal/errors"
)

// DefaultMount is the KV v2 mount used when none is configured.
const DefaultMount = "secret"

// Client talks to a single Vault server with a static token.
type Client struct {
	address    string
	token      string
	mountPath  string
	namespace  string
	httpClient *http.Client
}

// Config holds Vault client configuration.
type Config struct {
	// Address is the server, e.g. "https://vault.example.com:8200".
	// VAULT_ADDR is used when empty.
	Address string

	// Token falls back to VAULT_TOKEN when empty
	Token string

	MountPath string

	// Namespace is sent as X-Vault-Namespace (Vault Enterprise)
	Namespace string

	// HTTPClient overrides the default client (30s timeout)
	HTTPClient *http.Client
}

// NewClient validates cfg and creates a client. Nothing is sent until the
// first request.
func NewClient(cfg Config) (*Client, error) {
	address := firstNonEmpty(cfg.Address, os.Getenv("VAULT_ADDR"))
	if address == "" {
		return nil, errors.NewConfigInvalidError("store.vault.address", "vault address is required")
	}
	if u, err := url.Parse(address); err != nil || u.Host == "" {
		return nil, errors.NewConfigInvalidError("store.vault.address", fmt.Sprintf("%q is not a URL", address))
	}

	token := firstNonEmpty(cfg.Token, os.Getenv("VAULT_TOKEN"))
	if token == "" {
		return nil, errors.NewConfigInvalidError("store.vault.token", "vault token is required (set store.vault.token or VAULT_TOKEN)")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		address:    strings.TrimRight(address, "/"),
		token:      token,
		mountPath:  strings.Trim(firstNonEmpty(cfg.MountPath, DefaultMount), "/"),
		namespace:  cfg.Namespace,
		httpClient: httpClient,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("X-Vault-Token", c.token)
	req.Header.Set("Content-Type", "application/json")
	if c.namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.namespace)
	}
}

// Health asks /v1/sys/health whether the server can serve reads. Standby
// nodes count as healthy; sealed or uninitialized servers do not.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.address+"/v1/sys/health?standbyok=true&perfstandbyok=true", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	if c.namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.namespace)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vault is unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotImplemented:
		return fmt.Errorf("vault is not initialized")
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("vault is sealed")
	case resp.StatusCode >= 500:
		return fmt.Errorf("vault unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// MountPath returns the configured KV mount path.
func (c *Client) MountPath() string {
	return c.mountPath
}

// Address returns the Vault server address.
func (c *Client) Address() string {
	return c.address
}
