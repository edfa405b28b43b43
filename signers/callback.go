package signers

import (
	"context"

	"github.com/stellar/go-stellar-sdk/txnbuild"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	payerrors "github.com/marwen-abid/stellar-payments-go/errors"
)

// callbackSigner delegates signing to an external service that works on envelope XDR.
type callbackSigner struct {
	publicKey string
	signFunc  func(ctx context.Context, envelopeXDR, networkPassphrase string) (string, error)
}

// FromCallback creates a Signer from a public key and an arbitrary signing function.
// The function receives the unsigned envelope as base64 XDR and returns it signed.
// Intended for HSMs, custodial APIs, or any signer that never exposes a secret.
func FromCallback(
	publicKey string,
	signFunc func(ctx context.Context, envelopeXDR, networkPassphrase string) (string, error),
) stellarpay.Signer {
	return &callbackSigner{
		publicKey: publicKey,
		signFunc:  signFunc,
	}
}

// PublicKey returns the Stellar address (G...) for this signer.
func (s *callbackSigner) PublicKey() string {
	return s.publicKey
}

// Sign round-trips tx through the callback. The returned envelope must be a plain
// transaction with the same hash as tx; the callback may only add signatures.
func (s *callbackSigner) Sign(ctx context.Context, tx *txnbuild.Transaction, networkPassphrase string) (*txnbuild.Transaction, error) {
	envelope, err := tx.Base64()
	if err != nil {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "failed to encode transaction", err)
	}

	signed, err := s.signFunc(ctx, envelope, networkPassphrase)
	if err != nil {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "external signer failed", err)
	}

	generic, err := txnbuild.TransactionFromXDR(signed)
	if err != nil {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "external signer returned an invalid envelope", err)
	}
	result, ok := generic.Transaction()
	if !ok {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "external signer returned a fee bump envelope", nil)
	}

	want, err := tx.Hash(networkPassphrase)
	if err != nil {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "failed to hash transaction", err)
	}
	got, err := result.Hash(networkPassphrase)
	if err != nil {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "failed to hash signed transaction", err)
	}
	if got != want {
		return nil, payerrors.New(payerrors.LayerPayment, payerrors.SIGNING_FAILED, "external signer returned a different transaction", nil)
	}
	return result, nil
}
