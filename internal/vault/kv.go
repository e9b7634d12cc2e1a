package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrSecretNotFound is returned by Get when nothing is stored at the path.
var ErrSecretNotFound = errors.New("vault: secret not found")

// KV provides access to Vault's KV v2 secrets engine.
type KV struct {
	client *Client
}

// KV returns a KV v2 accessor bound to the client's mount.
func (c *Client) KV() *KV {
	return &KV{client: c}
}

func (kv *KV) url(op, path string) string {
	return fmt.Sprintf("%s/v1/%s/%s/%s", kv.client.address, kv.client.mountPath, op, path)
}

func (kv *KV) do(ctx context.Context, method, url string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	kv.client.addHeaders(req)

	return kv.client.httpClient.Do(req)
}

// Put replaces the secret at path with data, creating a new version.
func (kv *KV) Put(ctx context.Context, path string, data map[string]string) error {
	resp, err := kv.do(ctx, http.MethodPost, kv.url("data", path), map[string]any{"data": data})
	if err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to write secret (status %d): %s", resp.StatusCode, string(b))
	}
	return nil
}

// Get reads the latest version of the secret at path.
// A deleted latest version is reported as ErrSecretNotFound.
func (kv *KV) Get(ctx context.Context, path string) (map[string]string, error) {
	resp, err := kv.do(ctx, http.MethodGet, kv.url("data", path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSecretNotFound
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to read secret (status %d): %s", resp.StatusCode, string(b))
	}

	var envelope struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode secret response: %w", err)
	}
	if envelope.Data.Data == nil {
		return nil, ErrSecretNotFound
	}

	out := make(map[string]string, len(envelope.Data.Data))
	for k, v := range envelope.Data.Data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// Destroy removes every version and the metadata of the secret at path.
// Missing secrets are not an error.
func (kv *KV) Destroy(ctx context.Context, path string) error {
	resp, err := kv.do(ctx, http.MethodDelete, kv.url("metadata", path), nil)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete secret (status %d): %s", resp.StatusCode, string(b))
	}
}
