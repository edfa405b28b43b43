// Package memory provides in-memory implementations of the service's storage and ledger
// interfaces. They are suitable for examples, tests and offline demos.
package memory

import (
	"context"
	"sync"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
)

// KeyStore is an in-memory implementation of stellarpay.KeyStore.
// Secret material never leaves process memory and is lost on exit.
// Access is protected by sync.RWMutex for thread safety.
type KeyStore struct {
	active *stellarpay.Keypair
	mu     sync.RWMutex
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// Save replaces the active keypair.
func (s *KeyStore) Save(ctx context.Context, kp stellarpay.Keypair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = &kp
	return nil
}

// Load returns the active keypair, if any.
func (s *KeyStore) Load(ctx context.Context) (stellarpay.Keypair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return stellarpay.Keypair{}, false, nil
	}
	return *s.active, true, nil
}

// Delete forgets the active keypair.
func (s *KeyStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = nil
	return nil
}

// Verify that KeyStore implements stellarpay.KeyStore
var _ stellarpay.KeyStore = (*KeyStore)(nil)
