package signers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/txnbuild"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	payerrors "github.com/marwen-abid/stellar-payments-go/errors"
)

// keypairSigner wraps an SDK keypair for signing transactions.
type keypairSigner struct {
	kp *keypair.Full
}

// FromSecret creates a Signer from a Stellar secret key (S...).
// Returns an INVALID_SECRET error if the seed is malformed (wrong length or checksum).
func FromSecret(secret string) (stellarpay.Signer, error) {
	kp, err := ParseSecret(secret)
	if err != nil {
		return nil, err
	}
	return &keypairSigner{kp: kp}, nil
}

// ParseSecret parses a secret seed into a full keypair.
func ParseSecret(secret string) (*keypair.Full, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, payerrors.New(payerrors.LayerAccount, payerrors.INVALID_SECRET,
			"Invalid secret key", err)
	}
	return kp, nil
}

// Random generates a fresh keypair from a cryptographically secure source.
func Random() (stellarpay.Keypair, error) {
	kp, err := keypair.Random()
	if err != nil {
		return stellarpay.Keypair{}, payerrors.New(payerrors.LayerAccount, payerrors.KEYPAIR_GENERATION_FAILED,
			"failed to generate keypair", err)
	}
	return stellarpay.Keypair{PublicKey: kp.Address(), SecretKey: kp.Seed()}, nil
}

// PublicKey returns the Stellar address (G...) for this keypair.
func (s *keypairSigner) PublicKey() string {
	return s.kp.Address()
}

// Sign signs the transaction hash for the given network with the keypair.
func (s *keypairSigner) Sign(_ context.Context, tx *txnbuild.Transaction, networkPassphrase string) (*txnbuild.Transaction, error) {
	signed, err := tx.Sign(networkPassphrase, s.kp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	return signed, nil
}
