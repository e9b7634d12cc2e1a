package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/security"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	runStoreContract(t, NewFileStore(path))
}

func TestFileStoreSealed(t *testing.T) {
	sealer, err := security.NewSealer("hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "session.json")
	runStoreContract(t, NewFileStore(path, WithSealer(sealer)))
}

func TestFileStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "safekart")
	path := filepath.Join(dir, "session.json")
	s := NewFileStore(path)

	require.NoError(t, s.Put(context.Background(), "auth_token", "abc"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
}

func TestFileStoreRemovesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "auth_token", "abc"))
	require.FileExists(t, path)

	require.NoError(t, s.Remove(ctx, "auth_token"))
	assert.NoFileExists(t, path)
}

func TestFileStoreSharedBetweenInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	require.NoError(t, NewFileStore(path).Put(ctx, "user_id", "7"))

	v, ok, err := NewFileStore(path).Get(ctx, "user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestFileStoreSealedHidesValues(t *testing.T) {
	sealer, err := security.NewSealer("hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFileStore(path, WithSealer(sealer)).Put(context.Background(), "auth_token", "very-secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-token")

	var env fileEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.NotEmpty(t, env.Salt)
	assert.NotEmpty(t, env.Sealed)
	assert.Nil(t, env.Values)
}

func TestFileStoreSealedNeedsPassphrase(t *testing.T) {
	sealer, err := security.NewSealer("hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	require.NoError(t, NewFileStore(path, WithSealer(sealer)).Put(ctx, "auth_token", "abc"))

	_, _, err = NewFileStore(path).Get(ctx, "auth_token")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrPassphraseRequired))

	var skErr *errors.SafeKartError
	require.True(t, stderrors.As(err, &skErr))
	assert.Equal(t, errors.ErrCodeStoreDecryptFailed, skErr.Code)

	wrong, err := security.NewSealer("wrong")
	require.NoError(t, err)
	_, _, err = NewFileStore(path, WithSealer(wrong)).Get(ctx, "auth_token")
	require.True(t, stderrors.As(err, &skErr))
	assert.Equal(t, errors.ErrCodeStoreDecryptFailed, skErr.Code)
}

func TestFileStoreClearUnreadableFile(t *testing.T) {
	sealer, err := security.NewSealer("hunter2")
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(t *testing.T, path string)
		store func(path string) *FileStore
	}{
		{
			name: "malformed json",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
			},
			store: func(path string) *FileStore { return NewFileStore(path) },
		},
		{
			name: "sealed without passphrase",
			setup: func(t *testing.T, path string) {
				require.NoError(t, NewFileStore(path, WithSealer(sealer)).Put(ctx, "auth_token", "abc"))
			},
			store: func(path string) *FileStore { return NewFileStore(path) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			tt.setup(t, path)
			s := tt.store(path)

			_, _, err := s.Get(ctx, "auth_token")
			require.Error(t, err)

			require.NoError(t, s.Clear(ctx))
			_, err = os.Stat(path)
			assert.True(t, os.IsNotExist(err))

			_, ok, err := s.Get(ctx, "auth_token")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFileStoreUpgradesPlainFileToSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()
	require.NoError(t, NewFileStore(path).Put(ctx, "user_id", "7"))

	sealer, err := security.NewSealer("hunter2")
	require.NoError(t, err)
	sealed := NewFileStore(path, WithSealer(sealer))

	v, ok, err := sealed.Get(ctx, "user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	require.NoError(t, sealed.Put(ctx, "auth_token", "abc"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"user_id"`)
}

func TestFileStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := NewFileStore(path).Get(context.Background(), "auth_token")
	var skErr *errors.SafeKartError
	require.True(t, stderrors.As(err, &skErr))
	assert.Equal(t, errors.ErrCodeStoreReadFailed, skErr.Code)
}
