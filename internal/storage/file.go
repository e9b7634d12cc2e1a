package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/security"
)

const fileFormatVersion = 1

// ErrPassphraseRequired is returned when an encrypted session file is read
// by a store opened without a passphrase.
var ErrPassphraseRequired = stderrors.New("session file is encrypted; a passphrase is required")

// fileEnvelope is the on-disk layout. Exactly one of Values or Sealed is set.
type fileEnvelope struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
	Salt    string            `json:"salt,omitempty"`
	Sealed  string            `json:"sealed,omitempty"`
}

// FileStore keeps values in a JSON file readable only by the owner.
// Every operation re-reads the file so concurrent CLI processes see each
// other's writes. With a Sealer the values are encrypted at rest.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer *security.Sealer
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSealer encrypts the file contents.
func WithSealer(s *security.Sealer) FileOption {
	return func(f *FileStore) {
		f.sealer = s
	}
}

// NewFileStore returns a store backed by path. The file is created lazily.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	f := &FileStore{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, _, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Put(ctx context.Context, key, value string) error {
	return f.Apply(ctx, Batch{Puts: map[string]string{key: value}})
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	return f.Apply(ctx, Batch{Removes: []string{key}})
}

// Apply performs a read-modify-write of the whole file. An empty result
// deletes the file.
func (f *FileStore) Apply(_ context.Context, b Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, salt, err := f.load()
	if err != nil {
		return err
	}
	applyTo(values, b)

	if len(values) == 0 {
		return f.removeFile()
	}
	return f.save(values, salt)
}

// Clear deletes the session file without reading it.
func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeFile()
}

func (f *FileStore) removeFile() error {
	if err := os.Remove(f.path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to remove session file", err)
	}
	return nil
}

func (f *FileStore) load() (map[string]string, string, error) {
	data, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), "", nil
	}
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeStoreReadFailed, "failed to read session file", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeStoreReadFailed, fmt.Sprintf("malformed session file: %s", f.path), err)
	}

	if env.Sealed == "" {
		if env.Values == nil {
			env.Values = make(map[string]string)
		}
		return env.Values, "", nil
	}

	if f.sealer == nil {
		return nil, "", errors.NewDecryptError(f.path, ErrPassphraseRequired)
	}
	plain, err := f.sealer.Open(env.Salt, env.Sealed)
	if err != nil {
		return nil, "", errors.NewDecryptError(f.path, err)
	}
	values := make(map[string]string)
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, "", errors.NewDecryptError(f.path, err)
	}
	return values, env.Salt, nil
}

func (f *FileStore) save(values map[string]string, salt string) error {
	env := fileEnvelope{Version: fileFormatVersion}

	if f.sealer != nil {
		if salt == "" {
			s, err := security.NewSalt()
			if err != nil {
				return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to generate salt", err)
			}
			salt = s
		}
		plain, err := json.Marshal(values)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to encode session", err)
		}
		sealed, err := f.sealer.Seal(salt, plain)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to encrypt session", err)
		}
		env.Salt = salt
		env.Sealed = sealed
	} else {
		env.Values = values
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to encode session file", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("failed to create directory: %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create temporary session file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to restrict session file permissions", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write session file", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to replace session file", err)
	}
	return nil
}

var (
	_ Store   = (*FileStore)(nil)
	_ Batcher = (*FileStore)(nil)
	_ Clearer = (*FileStore)(nil)
)
