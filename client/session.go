package client

import (
	"context"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/errors"
)

// Session keeps the active keypair in a KeyStore across gateway calls.
type Session struct {
	client *Client
	store  stellarpay.KeyStore
}

// NewSession creates a session backed by store.
func NewSession(client *Client, store stellarpay.KeyStore) *Session {
	return &Session{client: client, store: store}
}

// Create makes a new account and stores it as active. Keys from a creation whose
// funding failed are stored too, so funding can be retried without losing them.
func (s *Session) Create(ctx context.Context) (stellarpay.Keypair, error) {
	kp, err := s.client.CreateAccount(ctx)
	if kp.PublicKey != "" {
		if saveErr := s.save(ctx, kp); saveErr != nil {
			return kp, saveErr
		}
	}
	return kp, err
}

// Import recovers an account from its secret and stores it as active.
func (s *Session) Import(ctx context.Context, secretKey string) (stellarpay.Keypair, error) {
	kp, err := s.client.ImportAccount(ctx, secretKey)
	if err != nil {
		return stellarpay.Keypair{}, err
	}
	return kp, s.save(ctx, kp)
}

// Active returns the stored keypair. ok is false when nobody is logged in.
func (s *Session) Active(ctx context.Context) (stellarpay.Keypair, bool, error) {
	kp, ok, err := s.store.Load(ctx)
	if err != nil {
		return stellarpay.Keypair{}, false, errors.New(errors.LayerClient, errors.KEYSTORE_ERROR, "failed to load keypair", err)
	}
	return kp, ok, nil
}

// Require returns the stored keypair or an error when there is none.
func (s *Session) Require(ctx context.Context) (stellarpay.Keypair, error) {
	kp, ok, err := s.Active(ctx)
	if err != nil {
		return stellarpay.Keypair{}, err
	}
	if !ok {
		return stellarpay.Keypair{}, errors.New(errors.LayerClient, errors.KEYSTORE_ERROR,
			"no active account; create or import one first", nil)
	}
	return kp, nil
}

// Logout forgets the active keypair.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx); err != nil {
		return errors.New(errors.LayerClient, errors.KEYSTORE_ERROR, "failed to delete keypair", err)
	}
	return nil
}

func (s *Session) save(ctx context.Context, kp stellarpay.Keypair) error {
	if err := s.store.Save(ctx, kp); err != nil {
		return errors.New(errors.LayerClient, errors.KEYSTORE_ERROR, "failed to save keypair", err)
	}
	return nil
}
