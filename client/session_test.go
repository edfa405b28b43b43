package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/store/memory"
)

func TestSessionCreateImportLogout(t *testing.T) {
	ctx := context.Background()
	session := NewSession(newGateway(t, nil), memory.NewKeyStore())

	_, ok, err := session.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = session.Require(ctx)
	assert.ErrorIs(t, err, errors.New(errors.LayerClient, errors.KEYSTORE_ERROR, "", nil))

	created, err := session.Create(ctx)
	require.NoError(t, err)
	active, err := session.Require(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, active)

	require.NoError(t, session.Logout(ctx))
	_, ok, err = session.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	imported, err := session.Import(ctx, created.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, created, imported)
}

func TestSessionStoresKeysOfUnfundedAccount(t *testing.T) {
	ctx := context.Background()
	c := newGateway(t, faucetFunc(func(context.Context, string) error {
		return errors.New(errors.LayerLedger, errors.FUNDING_FAILED, "friendbot unavailable", nil)
	}))
	session := NewSession(c, memory.NewKeyStore())

	kp, err := session.Create(ctx)
	require.Error(t, err)

	stored, ok, err := session.Active(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kp, stored)
}

func TestSessionImportRejectsBadSecret(t *testing.T) {
	ctx := context.Background()
	session := NewSession(newGateway(t, nil), memory.NewKeyStore())

	_, err := session.Import(ctx, "SNOTASECRET")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, string(errors.INVALID_SECRET), apiErr.Code)

	_, ok, err := session.Active(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

type fetchFunc func(ctx context.Context, publicKey string) (*stellarpay.AccountDetails, error)

func (f fetchFunc) AccountDetails(ctx context.Context, publicKey string) (*stellarpay.AccountDetails, error) {
	return f(ctx, publicKey)
}

func TestRefresherPollsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *stellarpay.AccountDetails, 16)
	failures := make(chan error, 16)
	calls := 0
	fetch := fetchFunc(func(_ context.Context, publicKey string) (*stellarpay.AccountDetails, error) {
		calls++
		if calls == 2 {
			return nil, errors.New(errors.LayerClient, errors.NETWORK_ERROR, "gateway unreachable", nil)
		}
		return &stellarpay.AccountDetails{Balances: []stellarpay.Balance{{AssetType: "native", Balance: "1.0000000"}}}, nil
	})

	r := NewRefresher(fetch, "GABC", 10*time.Millisecond,
		func(d *stellarpay.AccountDetails) { updates <- d },
		func(err error) { failures <- err })

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case d := <-updates:
		assert.Equal(t, "1.0000000", d.Balances[0].Balance)
	case <-time.After(time.Second):
		t.Fatal("no initial refresh")
	}
	select {
	case err := <-failures:
		assert.Equal(t, errors.NETWORK_ERROR, errors.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("failure not reported")
	}
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("refresher stopped after a failure")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresherDefaultInterval(t *testing.T) {
	r := NewRefresher(fetchFunc(nil), "GABC", 0, func(*stellarpay.AccountDetails) {}, nil)
	assert.Equal(t, DefaultRefreshInterval, r.interval)
}
