package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "auth_token", "abc"))
		v, ok, err := s.Get(ctx, "auth_token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "auth_token", "def"))
		v, _, err := s.Get(ctx, "auth_token")
		require.NoError(t, err)
		assert.Equal(t, "def", v)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "auth_token"))
		require.NoError(t, s.Remove(ctx, "auth_token"))
		_, ok, err := s.Get(ctx, "auth_token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("apply batch", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "user_phone", "555"))
		err := Apply(ctx, s, Batch{
			Puts:    map[string]string{"auth_token": "t1", "user_id": "42"},
			Removes: []string{"user_phone"},
		})
		require.NoError(t, err)

		for key, want := range map[string]string{"auth_token": "t1", "user_id": "42"} {
			v, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, key)
			assert.Equal(t, want, v)
		}
		_, ok, err := s.Get(ctx, "user_phone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty value is present", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "user_role", ""))
		_, ok, err := s.Get(ctx, "user_role")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("clear everything", func(t *testing.T) {
		err := Apply(ctx, s, Batch{Removes: []string{"auth_token", "user_id", "user_role"}})
		require.NoError(t, err)
		for _, key := range []string{"auth_token", "user_id", "user_role"} {
			_, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, key)
		}
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "auth_token", "t2"))
		require.NoError(t, s.Put(ctx, "user_id", "7"))
		keys := []string{"auth_token", "user_id"}
		require.NoError(t, Clear(ctx, s, keys))
		require.NoError(t, Clear(ctx, s, keys))
		for _, key := range keys {
			_, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, key)
		}
	})
}

// plainStore hides the Batcher implementation of a MemoryStore.
type plainStore struct {
	inner *MemoryStore
}

func (p plainStore) Get(ctx context.Context, k string) (string, bool, error) {
	return p.inner.Get(ctx, k)
}
func (p plainStore) Put(ctx context.Context, k, v string) error { return p.inner.Put(ctx, k, v) }
func (p plainStore) Remove(ctx context.Context, k string) error { return p.inner.Remove(ctx, k) }

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestApplyWithoutBatcher(t *testing.T) {
	runStoreContract(t, plainStore{inner: NewMemoryStore()})
}

func TestMemoryStoreSnapshotIsCopy(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Put(context.Background(), "a", "1"))

	snap := m.Snapshot()
	snap["a"] = "changed"

	v, _, _ := m.Get(context.Background(), "a")
	assert.Equal(t, "1", v)
}
