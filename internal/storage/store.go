// Package storage provides the key-value stores that hold a persisted
// SafeKart session between CLI invocations.
package storage

import (
	"context"
	"maps"
	"slices"
)

// Store is a string key-value store. Get reports absence with ok=false
// rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Batch is a set of writes applied together.
type Batch struct {
	Puts    map[string]string
	Removes []string
}

// Batcher is implemented by stores that can apply a Batch as one unit.
type Batcher interface {
	Apply(ctx context.Context, b Batch) error
}

// Pinger is implemented by networked stores that can check the backend
// without touching any key.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Clearer is implemented by stores that can drop everything they hold
// without reading it first.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Clear removes keys from s. A Clearer drops its whole contents instead,
// which still works when the stored data cannot be read or decrypted.
func Clear(ctx context.Context, s Store, keys []string) error {
	if c, ok := s.(Clearer); ok {
		return c.Clear(ctx)
	}
	return Apply(ctx, s, Batch{Removes: keys})
}

// Apply writes b through s. Stores implementing Batcher apply it atomically;
// others get the puts then the removes, one key at a time.
func Apply(ctx context.Context, s Store, b Batch) error {
	if bs, ok := s.(Batcher); ok {
		return bs.Apply(ctx, b)
	}
	for _, k := range slices.Sorted(maps.Keys(b.Puts)) {
		if err := s.Put(ctx, k, b.Puts[k]); err != nil {
			return err
		}
	}
	for _, k := range b.Removes {
		if err := s.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// applyTo mutates values in place according to b.
func applyTo(values map[string]string, b Batch) {
	for k, v := range b.Puts {
		values[k] = v
	}
	for _, k := range b.Removes {
		delete(values, k)
	}
}
