package model

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SealedCredential is a secret that is encrypted at rest. Sealing and
// unsealing happen explicitly at the persistence boundary, never implicitly
// on attribute access.
type SealedCredential struct {
	ciphertext string // base64(nonce || AES-GCM ciphertext)
	plaintext  string
}

var ErrCredentialSealed = errors.New("credential is sealed")

// NewCredential wraps a plaintext secret prior to sealing.
func NewCredential(plaintext string) SealedCredential {
	return SealedCredential{plaintext: plaintext}
}

// SealedFrom restores a credential from its stored ciphertext.
func SealedFrom(ciphertext string) SealedCredential {
	return SealedCredential{ciphertext: ciphertext}
}

// Plaintext returns the secret, failing when only the sealed form is held.
func (c SealedCredential) Plaintext() (string, error) {
	if c.plaintext == "" && c.ciphertext != "" {
		return "", ErrCredentialSealed
	}
	return c.plaintext, nil
}

// Ciphertext returns the sealed form, empty when the credential was never
// sealed.
func (c SealedCredential) Ciphertext() string {
	return c.ciphertext
}

// IsZero reports whether the credential holds nothing in either form.
func (c SealedCredential) IsZero() bool {
	return c.plaintext == "" && c.ciphertext == ""
}

// Seal encrypts the plaintext with the given 32-byte key (AES-256-GCM) and
// returns a credential carrying both forms.
func (c SealedCredential) Seal(key []byte) (SealedCredential, error) {
	if c.plaintext == "" {
		return c, nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return c, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return c, fmt.Errorf("sealing credential: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(c.plaintext), nil)
	c.ciphertext = base64.StdEncoding.EncodeToString(sealed)
	return c, nil
}

// Unseal decrypts the stored ciphertext with the given key.
func (c SealedCredential) Unseal(key []byte) (SealedCredential, error) {
	if c.ciphertext == "" {
		return c, nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return c, err
	}
	raw, err := base64.StdEncoding.DecodeString(c.ciphertext)
	if err != nil {
		return c, fmt.Errorf("unsealing credential: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return c, errors.New("unsealing credential: ciphertext too short")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return c, fmt.Errorf("unsealing credential: %w", err)
	}
	c.plaintext = string(plain)
	return c, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credential key: %w", err)
	}
	return cipher.NewGCM(block)
}
