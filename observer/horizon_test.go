package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/base"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	watched = "GWATCHED"
	other   = "GOTHER"
)

func payment(id, from, to, amount string, asset base.Asset) operations.Payment {
	return operations.Payment{
		Base: operations.Base{
			ID:              id,
			PT:              "pt-" + id,
			TransactionHash: "tx-" + id,
			Transaction:     &hProtocol.Transaction{MemoType: "text", Memo: "memo-" + id},
		},
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: amount,
	}
}

func streamOf(ops ...operations.Operation) func(mock.Arguments) {
	return func(args mock.Arguments) {
		handler := args.Get(2).(horizonclient.OperationHandler)
		for _, op := range ops {
			handler(op)
		}
	}
}

func TestHorizonObserverDeliversFilteredPayments(t *testing.T) {
	usd := base.Asset{Type: "credit_alphanum4", Code: "USD", Issuer: other}

	hmock := &horizonclient.MockClient{}
	hmock.On("StreamPayments", mock.Anything, horizonclient.OperationRequest{
		ForAccount: watched,
		Cursor:     "now",
		Order:      horizonclient.OrderAsc,
	}, mock.Anything).Run(streamOf(
		payment("1", other, watched, "5.0000000", base.Asset{Type: "native"}),
		operations.CreateAccount{Base: operations.Base{ID: "2", PT: "pt-2"}, Funder: other, Account: watched, StartingBalance: "10000.0000000"},
		payment("3", watched, other, "1.0000000", usd),
		operations.SetOptions{Base: operations.Base{ID: "4", PT: "pt-4"}},
	)).Return(nil).Once()

	var saved []string
	obs := NewHorizonObserver(hmock, watched, WithCursorSaver(func(c string) error {
		saved = append(saved, c)
		return nil
	}))

	var all, received []PaymentEvent
	obs.OnPayment(func(evt PaymentEvent) error {
		all = append(all, evt)
		return nil
	})
	obs.OnPayment(func(evt PaymentEvent) error {
		received = append(received, evt)
		return nil
	}, WithDestination(watched), WithAsset("native"))

	require.NoError(t, obs.Start(context.Background()))

	require.Len(t, all, 3)
	assert.Equal(t, PaymentEvent{
		ID: "1", From: other, To: watched, Asset: "native", Amount: "5.0000000",
		Memo: "memo-1", Cursor: "pt-1", TransactionHash: "tx-1",
	}, all[0])
	assert.Equal(t, "USD:"+other, all[2].Asset)

	require.Len(t, received, 2)
	assert.Equal(t, "10000.0000000", received[1].Amount)
	assert.Equal(t, []string{"pt-1", "pt-2", "pt-3"}, saved)
	assert.Equal(t, "pt-3", obs.Cursor())
	hmock.AssertExpectations(t)
}

func TestHorizonObserverReconnectsFromLastCursor(t *testing.T) {
	hmock := &horizonclient.MockClient{}
	hmock.On("StreamPayments", mock.Anything, horizonclient.OperationRequest{ForAccount: watched, Cursor: "now", Order: horizonclient.OrderAsc}, mock.Anything).
		Run(streamOf(payment("1", other, watched, "1.0000000", base.Asset{Type: "native"}))).
		Return(assert.AnError).Once()
	hmock.On("StreamPayments", mock.Anything, horizonclient.OperationRequest{ForAccount: watched, Cursor: "pt-1", Order: horizonclient.OrderAsc}, mock.Anything).
		Run(streamOf(payment("2", other, watched, "2.0000000", base.Asset{Type: "native"}))).
		Return(nil).Once()

	obs := NewHorizonObserver(hmock, watched, WithReconnectBackoff(time.Millisecond, 5*time.Millisecond))

	var ids []string
	obs.OnPayment(func(evt PaymentEvent) error {
		ids = append(ids, evt.ID)
		return nil
	})

	require.NoError(t, obs.Start(context.Background()))
	assert.Equal(t, []string{"1", "2"}, ids)
	hmock.AssertExpectations(t)
}

func TestHorizonObserverStop(t *testing.T) {
	hmock := &horizonclient.MockClient{}
	hmock.On("StreamPayments", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.Canceled)

	obs := NewHorizonObserver(hmock, watched)

	var wg sync.WaitGroup
	var startErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		startErr = obs.Start(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, obs.Stop())
	require.NoError(t, obs.Stop())
	wg.Wait()
	assert.NoError(t, startErr)
}

func TestHorizonObserverContextCancel(t *testing.T) {
	hmock := &horizonclient.MockClient{}
	hmock.On("StreamPayments", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.Canceled)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := NewHorizonObserver(hmock, watched).Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribe(t *testing.T) {
	hmock := &horizonclient.MockClient{}
	hmock.On("StreamPayments", mock.Anything, mock.Anything, mock.Anything).
		Run(streamOf(
			payment("1", other, watched, "1.0000000", base.Asset{Type: "native"}),
			payment("2", other, watched, "20.0000000", base.Asset{Type: "native"}),
		)).
		Return(nil).Once()

	events, done := Subscribe(context.Background(), NewHorizonObserver(hmock, watched), 8, WithMinAmount("10"))

	var got []PaymentEvent
	for evt := range events {
		got = append(got, evt)
	}
	require.NoError(t, <-done)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestFilters(t *testing.T) {
	evt := PaymentEvent{From: other, To: watched, Asset: "native", Amount: "10.5000000"}

	assert.True(t, WithAccount(watched)(evt))
	assert.True(t, WithAccount(other)(evt))
	assert.False(t, WithAccount("GTHIRD")(evt))
	assert.True(t, WithSource(other)(evt))
	assert.False(t, WithSource(watched)(evt))
	assert.True(t, WithMinAmount("10.5")(evt))
	assert.True(t, WithMinAmount("9")(evt))
	assert.False(t, WithMinAmount("100")(evt), "compared numerically, not as text")
	assert.False(t, WithMinAmount("bogus")(evt))
}
