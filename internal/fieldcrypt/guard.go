// Package fieldcrypt encrypts sensitive payload fields before they reach the store.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecryption means a stored value exists but could not be turned back into plaintext.
var ErrDecryption = errors.New("fieldcrypt: could not decrypt field")

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

const ivDelimiter = ":"

// Guard seals and opens field values with AES-256-GCM. Each value is stored as
// hex(iv) ":" hex(ciphertext) so decryption needs nothing but the key.
type Guard struct {
	aead cipher.AEAD
}

func NewGuard(key []byte) (*Guard, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("fieldcrypt: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: new gcm: %w", err)
	}
	return &Guard{aead: aead}, nil
}

// NewGuardFromHex builds a Guard from a hex-encoded key.
func NewGuardFromHex(hexKey string) (*Guard, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: decode key: %w", err)
	}
	return NewGuard(key)
}

// Encrypt returns nil for a nil plaintext: an absent field stays absent.
func (g *Guard) Encrypt(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	s, err := g.EncryptString(*plaintext)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *Guard) EncryptString(plaintext string) (string, error) {
	iv := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("fieldcrypt: read iv: %w", err)
	}
	sealed := g.aead.Seal(nil, iv, []byte(plaintext), nil)
	return hex.EncodeToString(iv) + ivDelimiter + hex.EncodeToString(sealed), nil
}

// Decrypt returns (nil, nil) for an absent field and ErrDecryption for a value
// that is present but unreadable.
func (g *Guard) Decrypt(ciphertext *string) (*string, error) {
	if ciphertext == nil {
		return nil, nil
	}
	s, err := g.DecryptString(*ciphertext)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (g *Guard) DecryptString(ciphertext string) (string, error) {
	ivHex, bodyHex, ok := strings.Cut(ciphertext, ivDelimiter)
	if !ok {
		return "", fmt.Errorf("%w: missing iv delimiter", ErrDecryption)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != g.aead.NonceSize() {
		return "", fmt.Errorf("%w: malformed iv", ErrDecryption)
	}
	body, err := hex.DecodeString(bodyHex)
	if err != nil {
		return "", fmt.Errorf("%w: malformed body", ErrDecryption)
	}
	plain, err := g.aead.Open(nil, iv, body, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plain), nil
}
