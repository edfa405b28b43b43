package signers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/network"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/marwen-abid/stellar-payments-go/errors"
)

func unsignedPayment(t *testing.T, source string) *txnbuild.Transaction {
	t.Helper()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: source, Sequence: 1},
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{Destination: keypair.MustRandom().Address(), Amount: "1", Asset: txnbuild.NativeAsset{}},
		},
		BaseFee:       txnbuild.MinBaseFee,
		Memo:          txnbuild.MemoText("hsm"),
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(30)},
	})
	require.NoError(t, err)
	return tx
}

// remoteSigner stands in for an HSM: it only ever sees envelopes.
func remoteSigner(kp *keypair.Full) func(context.Context, string, string) (string, error) {
	return func(_ context.Context, envelope, passphrase string) (string, error) {
		generic, err := txnbuild.TransactionFromXDR(envelope)
		if err != nil {
			return "", err
		}
		tx, ok := generic.Transaction()
		if !ok {
			return "", fmt.Errorf("not a transaction")
		}
		signed, err := tx.Sign(passphrase, kp)
		if err != nil {
			return "", err
		}
		return signed.Base64()
	}
}

func TestCallbackSigner(t *testing.T) {
	kp := keypair.MustRandom()
	signer := FromCallback(kp.Address(), remoteSigner(kp))
	assert.Equal(t, kp.Address(), signer.PublicKey())

	tx := unsignedPayment(t, kp.Address())
	signed, err := signer.Sign(context.Background(), tx, network.TestNetworkPassphrase)
	require.NoError(t, err)
	require.Len(t, signed.Signatures(), 1)

	hash, err := signed.Hash(network.TestNetworkPassphrase)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(hash[:], signed.Signatures()[0].Signature))
	assert.Equal(t, txnbuild.MemoText("hsm"), signed.Memo())
}

func TestCallbackSignerFailures(t *testing.T) {
	kp := keypair.MustRandom()
	tx := unsignedPayment(t, kp.Address())
	swapped := unsignedPayment(t, kp.Address())

	cases := map[string]func(context.Context, string, string) (string, error){
		"callback error": func(context.Context, string, string) (string, error) {
			return "", fmt.Errorf("device locked")
		},
		"garbage envelope": func(context.Context, string, string) (string, error) {
			return "not-xdr", nil
		},
		"different transaction": func(_ context.Context, _ string, passphrase string) (string, error) {
			signed, err := swapped.Sign(passphrase, kp)
			if err != nil {
				return "", err
			}
			return signed.Base64()
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			signed, err := FromCallback(kp.Address(), fn).Sign(context.Background(), tx, network.TestNetworkPassphrase)
			assert.Nil(t, signed)
			assert.Equal(t, payerrors.SIGNING_FAILED, payerrors.CodeOf(err))
		})
	}
}
