package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
)

type Option func(*TokenCipher)

func WithKeyID(id string) Option {
	return func(c *TokenCipher) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			c.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(c *TokenCipher) {
		if version > 0 {
			c.version = version
		}
	}
}

// WithPrevious lets Open read envelopes written under retired keys. Seal
// always uses the current key.
func WithPrevious(previous ...*TokenCipher) Option {
	return func(c *TokenCipher) {
		for _, p := range previous {
			if p != nil {
				c.previous = append(c.previous, p)
			}
		}
	}
}

// TokenCipher seals GitHub credentials with AES-GCM under an application
// key before they reach the database.
type TokenCipher struct {
	aead     cipher.AEAD
	keyID    string
	version  int
	previous []*TokenCipher
}

func NewTokenCipher(keyMaterial []byte, opts ...Option) (*TokenCipher, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	c := &TokenCipher{aead: aead, keyID: "app-key", version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func NewTokenCipherFromString(key string, opts ...Option) (*TokenCipher, error) {
	return NewTokenCipher([]byte(key), opts...)
}

func (c *TokenCipher) Seal(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("security: token cipher is nil")
	}
	if plaintext == "" {
		return "", fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), []byte(c.keyID))
	return encodeEnvelope(envelope{KeyID: c.keyID, Version: c.version}, nonce, sealed)
}

// Open decrypts a sealed token. Values without the envelope prefix are
// returned unchanged so rows written before sealing was enabled stay
// readable.
func (c *TokenCipher) Open(value string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("security: token cipher is nil")
	}
	if !IsSealed(value) {
		return value, nil
	}
	env, nonce, sealed, err := decodeEnvelope(value)
	if err != nil {
		return "", err
	}
	target := c.forKey(env.KeyID, env.Version)
	if target == nil {
		return "", fmt.Errorf("security: no key for %q version %d", env.KeyID, env.Version)
	}
	if len(nonce) != target.aead.NonceSize() {
		return "", fmt.Errorf("security: invalid nonce size")
	}
	plaintext, err := target.aead.Open(nil, nonce, sealed, []byte(env.KeyID))
	if err != nil {
		return "", fmt.Errorf("security: decrypt payload: %w", err)
	}
	return string(plaintext), nil
}

func (c *TokenCipher) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

func (c *TokenCipher) Version() int {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *TokenCipher) forKey(keyID string, version int) *TokenCipher {
	if c.matches(keyID, version) {
		return c
	}
	for _, p := range c.previous {
		if p.matches(keyID, version) {
			return p
		}
	}
	return nil
}

func (c *TokenCipher) matches(keyID string, version int) bool {
	if keyID != "" && keyID != c.keyID {
		return false
	}
	return version <= 0 || version == c.version
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}
