package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/safekart/safekart/internal/vault"
)

// VaultStore keeps every value in a single Vault KV v2 secret.
// KV v2 writes replace the whole secret, so each mutation is a
// read-modify-write guarded by a process-local mutex.
type VaultStore struct {
	mu     sync.Mutex
	client *vault.Client
	kv     *vault.KV
	path   string
}

// NewVaultStore stores values in the secret at path.
func NewVaultStore(client *vault.Client, path string) *VaultStore {
	return &VaultStore{client: client, kv: client.KV(), path: path}
}

// Ping checks that the Vault server answers.
func (v *VaultStore) Ping(ctx context.Context) error {
	return v.client.Health(ctx)
}

func (v *VaultStore) read(ctx context.Context) (map[string]string, error) {
	data, err := v.kv.Get(ctx, v.path)
	if stderrors.Is(err, vault.ErrSecretNotFound) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (v *VaultStore) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := v.read(ctx)
	if err != nil {
		return "", false, fmt.Errorf("vault session read: %w", err)
	}
	val, ok := data[key]
	return val, ok, nil
}

func (v *VaultStore) Put(ctx context.Context, key, value string) error {
	return v.Apply(ctx, Batch{Puts: map[string]string{key: value}})
}

func (v *VaultStore) Remove(ctx context.Context, key string) error {
	return v.Apply(ctx, Batch{Removes: []string{key}})
}

// Apply writes a new secret version, or destroys the secret once it is empty.
func (v *VaultStore) Apply(ctx context.Context, b Batch) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.read(ctx)
	if err != nil {
		return fmt.Errorf("vault session read: %w", err)
	}
	applyTo(data, b)

	if len(data) == 0 {
		return v.kv.Destroy(ctx, v.path)
	}
	return v.kv.Put(ctx, v.path, data)
}

// Clear destroys the secret without reading it.
func (v *VaultStore) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.kv.Destroy(ctx, v.path)
}

var (
	_ Store   = (*VaultStore)(nil)
	_ Batcher = (*VaultStore)(nil)
	_ Clearer = (*VaultStore)(nil)
)
