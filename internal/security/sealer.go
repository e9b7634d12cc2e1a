// Package security derives encryption keys from passphrases and seals small
// payloads (session files) with AES-GCM.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyIterations is the PBKDF2 work factor
	KeyIterations = 100000
	keyLength     = 32
	saltLength    = 16
)

// ErrCiphertextTooShort is returned when a sealed payload is truncated.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts and decrypts with keys derived from one passphrase.
// Derived keys are cached per salt.
type Sealer struct {
	passphrase []byte

	mu   sync.Mutex
	keys map[string][]byte
}

// NewSealer returns a Sealer for passphrase. An empty passphrase is rejected.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return &Sealer{
		passphrase: []byte(passphrase),
		keys:       make(map[string][]byte),
	}, nil
}

// NewSalt returns a random base64 salt suitable for Seal.
func NewSalt() (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

func (s *Sealer) key(salt string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[salt]; ok {
		return k, nil
	}
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	k := pbkdf2.Key(s.passphrase, raw, KeyIterations, keyLength, sha256.New)
	s.keys[salt] = k
	return k, nil
}

func (s *Sealer) gcm(salt string) (cipher.AEAD, error) {
	k, err := s.key(salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (s *Sealer) Seal(salt string, plaintext []byte) (string, error) {
	gcm, err := s.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. A wrong passphrase surfaces as an authentication error from GCM.
func (s *Sealer) Open(salt, sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}

	gcm, err := s.gcm(salt)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
