// Package bolt provides a KeyStore that persists the active keypair in a bbolt file.
// The secret seed is sealed under a key derived from a passphrase; the public key is
// stored in the clear so the file can be inspected without unlocking it.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stellar/go-stellar-sdk/keypair"
	bolt "go.etcd.io/bbolt"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/core/crypto"
	"github.com/marwen-abid/stellar-payments-go/errors"
)

var (
	bucketName = []byte("keystore")
	saltKey    = []byte("salt")
	activeKey  = []byte("active")
)

const openTimeout = time.Second

type record struct {
	PublicKey    string `json:"publicKey"`
	SealedSecret []byte `json:"sealedSecret"`
}

// KeyStore is a file-backed implementation of stellarpay.KeyStore.
type KeyStore struct {
	db  *bolt.DB
	key *[crypto.KeySize]byte
}

// Open opens (creating if needed) the key store at path and unlocks it with passphrase.
// A wrong passphrase is not detected here; Load reports it.
func Open(path, passphrase string) (*KeyStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, keystoreError("failed to open key store", err)
	}

	var salt []byte
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		if existing := b.Get(saltKey); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		salt, err = crypto.RandomBytes(crypto.SaltSize)
		if err != nil {
			return err
		}
		return b.Put(saltKey, salt)
	})
	if err != nil {
		db.Close()
		return nil, keystoreError("failed to initialize key store", err)
	}

	key, err := crypto.DeriveKey(passphrase, salt)
	if err != nil {
		db.Close()
		return nil, keystoreError("failed to derive key store key", err)
	}

	return &KeyStore{db: db, key: key}, nil
}

// Close releases the underlying file.
func (s *KeyStore) Close() error {
	return s.db.Close()
}

// Save replaces the active keypair.
func (s *KeyStore) Save(ctx context.Context, kp stellarpay.Keypair) error {
	sealed, err := crypto.Seal(s.key, []byte(kp.SecretKey))
	if err != nil {
		return keystoreError("failed to seal secret key", err)
	}
	raw, err := json.Marshal(record{PublicKey: kp.PublicKey, SealedSecret: sealed})
	if err != nil {
		return keystoreError("failed to encode keypair", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(activeKey, raw)
	})
	if err != nil {
		return keystoreError("failed to save keypair", err)
	}
	return nil
}

// Load returns the active keypair, if any.
func (s *KeyStore) Load(ctx context.Context) (stellarpay.Keypair, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(activeKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return stellarpay.Keypair{}, false, keystoreError("failed to read keypair", err)
	}
	if raw == nil {
		return stellarpay.Keypair{}, false, nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return stellarpay.Keypair{}, false, keystoreError("failed to decode keypair", err)
	}
	secret, err := crypto.Open(s.key, rec.SealedSecret)
	if err != nil {
		return stellarpay.Keypair{}, false, keystoreError("failed to unlock keypair", err)
	}

	full, err := keypair.ParseFull(string(secret))
	if err != nil || full.Address() != rec.PublicKey {
		return stellarpay.Keypair{}, false, keystoreError("stored keypair is inconsistent", err)
	}
	return stellarpay.Keypair{PublicKey: rec.PublicKey, SecretKey: string(secret)}, true, nil
}

// Delete forgets the active keypair.
func (s *KeyStore) Delete(ctx context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(activeKey)
	})
	if err != nil {
		return keystoreError("failed to delete keypair", err)
	}
	return nil
}

func keystoreError(message string, cause error) error {
	return errors.New(errors.LayerClient, errors.KEYSTORE_ERROR, message, cause)
}

var _ stellarpay.KeyStore = (*KeyStore)(nil)
