package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwen-abid/stellar-payments-go/account"
	"github.com/marwen-abid/stellar-payments-go/payment"
	"github.com/marwen-abid/stellar-payments-go/store/memory"
)

func TestDemoOffline(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	ledger := memory.NewLedger(network.TestNetworkPassphrase)
	var out bytes.Buffer
	d := &demo{
		out:      &out,
		accounts: account.NewManager(ledger, ledger, account.WithLogger(log)),
		payments: payment.NewWorkflow(ledger, payment.Config{
			NetworkPassphrase: network.TestNetworkPassphrase,
			DynamicFee:        true,
		}, payment.WithLogger(log)),
	}

	require.NoError(t, d.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "sender trusts USD up to 1000")
	assert.Contains(t, text, "100.0000000 USD")
	assert.Contains(t, text, "CROSS-BORDER PAYMENT COMPLETED SUCCESSFULLY")

	// Final balances: sender and receiver each hold 50.
	final := text[strings.LastIndex(text, "8. Checking final balances"):]
	assert.Equal(t, 2, strings.Count(final, "- 50.0000000 USD"))
}
