// Package crypto seals secret keys at rest. A key is derived from a passphrase with
// scrypt and secrets are sealed with NaCl secretbox.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	// SaltSize is the length of the salt DeriveKey expects.
	SaltSize = 16
	// KeySize is the length of a derived key.
	KeySize = 32

	nonceSize = 24

	// scrypt cost parameters for interactive logins.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// RandomBytes returns length cryptographically secure random bytes.
func RandomBytes(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("length must be positive, got %d", length)
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// DeriveKey stretches passphrase into a sealing key.
func DeriveKey(passphrase string, salt []byte) (*[KeySize]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is required")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	raw, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// Seal encrypts plaintext under key. The random nonce is prepended to the output.
func Seal(key *[KeySize]byte, plaintext []byte) ([]byte, error) {
	raw, err := RandomBytes(nonceSize)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw)

	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open decrypts a box produced by Seal. It fails when the key is wrong or the box
// was tampered with.
func Open(key *[KeySize]byte, box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("sealed box is too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("failed to open sealed box: wrong passphrase or corrupted data")
	}
	return plaintext, nil
}
