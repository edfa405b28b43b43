package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/network"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/account"
	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/observer"
	"github.com/marwen-abid/stellar-payments-go/payment"
	"github.com/marwen-abid/stellar-payments-go/store/memory"
)

// countingLedger records how often the ledger is reached.
type countingLedger struct {
	*memory.Ledger
	calls atomic.Int32
}

func (c *countingLedger) LoadAccount(ctx context.Context, publicKey string) (*stellarpay.Account, error) {
	c.calls.Add(1)
	return c.Ledger.LoadAccount(ctx, publicKey)
}

func (c *countingLedger) ListTransactions(ctx context.Context, publicKey string, limit uint, order stellarpay.Order) ([]stellarpay.TransactionRecord, error) {
	c.calls.Add(1)
	return c.Ledger.ListTransactions(ctx, publicKey, limit, order)
}

func (c *countingLedger) Submit(ctx context.Context, tx *txnbuild.Transaction) (*stellarpay.TransactionResult, error) {
	c.calls.Add(1)
	return c.Ledger.Submit(ctx, tx)
}

type faucetFunc func(ctx context.Context, publicKey string) error

func (f faucetFunc) Fund(ctx context.Context, publicKey string) error {
	return f(ctx, publicKey)
}

type testEnv struct {
	server *httptest.Server
	ledger *countingLedger
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestEnv(t *testing.T, faucet stellarpay.Faucet, opts ...Option) *testEnv {
	t.Helper()
	l := &countingLedger{Ledger: memory.NewLedger(network.TestNetworkPassphrase)}
	if faucet == nil {
		faucet = l.Ledger
	}

	log := quietLogger()
	accounts := account.NewManager(l, faucet, account.WithLogger(log))
	payments := payment.NewWorkflow(l, payment.Config{NetworkPassphrase: network.TestNetworkPassphrase}, payment.WithLogger(log))
	srv := NewServer(accounts, payments, append([]Option{WithLogger(log)}, opts...)...)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, ledger: l}
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) createAccount(t *testing.T) stellarpay.Keypair {
	t.Helper()
	status, body := e.post(t, "/api/account/create", nil)
	require.Equal(t, http.StatusOK, status, body)
	return stellarpay.Keypair{PublicKey: body["publicKey"].(string), SecretKey: body["secretKey"].(string)}
}

func usdBalances(body map[string]any, issuer string) []map[string]any {
	var found []map[string]any
	for _, raw := range body["balances"].([]any) {
		b := raw.(map[string]any)
		if b["asset_code"] == "USD" && b["asset_issuer"] == issuer {
			found = append(found, b)
		}
	}
	return found
}

func TestCreateAccountAndDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	kp := env.createAccount(t)

	full, err := keypair.ParseFull(kp.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, full.Address())

	status, body := env.get(t, "/api/account/"+kp.PublicKey)
	require.Equal(t, http.StatusOK, status)
	balances := body["balances"].([]any)
	require.Len(t, balances, 1)
	assert.Equal(t, "10000.0000000", balances[0].(map[string]any)["balance"])
	assert.Equal(t, []any{}, body["transactions"])
}

func TestCreateAccountFundingFailureReturnsKeys(t *testing.T) {
	env := newTestEnv(t, faucetFunc(func(context.Context, string) error {
		return errors.New(errors.LayerAccount, errors.FUNDING_FAILED, "Failed to create and fund account", nil)
	}))

	status, body := env.post(t, "/api/account/create", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "FUNDING_FAILED", body["code"])
	assert.Equal(t, "Failed to create and fund account", body["error"])
	assert.NotEmpty(t, body["publicKey"])
	assert.NotEmpty(t, body["secretKey"])
}

func TestFundAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	address := keypair.MustRandom().Address()

	status, body := env.post(t, "/api/account/fund", map[string]string{"publicKey": address})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["funded"])

	status, body = env.post(t, "/api/account/fund", map[string]string{"publicKey": address})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "FUNDING_FAILED", body["code"])

	status, body = env.post(t, "/api/account/fund", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "publicKey", body["field"])
}

func TestImportAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	generated := keypair.MustRandom()

	status, body := env.post(t, "/api/account/import", map[string]string{"secretKey": generated.Seed()})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, generated.Address(), body["publicKey"])
	assert.Equal(t, generated.Seed(), body["secretKey"])

	status, body = env.post(t, "/api/account/import", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Secret key is required", body["error"])
	assert.Equal(t, "VALIDATION_FAILED", body["code"])

	status, body = env.post(t, "/api/account/import", map[string]string{"secretKey": "SBROKEN"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INVALID_SECRET", body["code"])
	assert.Equal(t, "Invalid secret key", body["error"])

	status, body = env.post(t, "/api/account/import", map[string]string{"secretKey": "   "})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INVALID_SECRET", body["code"])
	assert.Equal(t, "Invalid secret key", body["error"])

	assert.Zero(t, env.ledger.calls.Load())
}

func TestPaymentMissingFieldsLeavesLedgerUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	secret := keypair.MustRandom().Seed()
	receiver := keypair.MustRandom().Address()

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{name: "no sender", body: map[string]string{"receiverPublicKey": receiver, "amount": "1"}, field: "senderSecretKey"},
		{name: "no receiver", body: map[string]string{"senderSecretKey": secret, "amount": "1"}, field: "receiverPublicKey"},
		{name: "no amount", body: map[string]string{"senderSecretKey": secret, "receiverPublicKey": receiver}, field: "amount"},
		{name: "empty body", body: map[string]string{}, field: "senderSecretKey,receiverPublicKey,amount"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.post(t, "/api/payment", tc.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Missing required parameters", body["error"])
			assert.Equal(t, tc.field, body["field"])
		})
	}

	resp, err := http.Post(env.server.URL+"/api/payment", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	status, body := decodeBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid request body", body["error"])

	assert.Zero(t, env.ledger.calls.Load())
}

func TestPaymentIssuedAssetWithoutIssuer(t *testing.T) {
	env := newTestEnv(t, nil)
	sender := env.createAccount(t)

	status, body := env.post(t, "/api/payment", map[string]string{
		"senderSecretKey":   sender.SecretKey,
		"receiverPublicKey": keypair.MustRandom().Address(),
		"amount":            "1",
		"asset":             "USD",
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "MISSING_ISSUER", body["code"])
	assert.Zero(t, env.ledger.calls.Load())
}

func TestTrustIssueAndPay(t *testing.T) {
	env := newTestEnv(t, nil)
	issuer, holder := env.createAccount(t), env.createAccount(t)

	status, body := env.post(t, "/api/asset/create", map[string]string{
		"assetCode": "USD", "issuerPublicKey": issuer.PublicKey,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, map[string]any{"assetCode": "USD", "issuer": issuer.PublicKey, "assetType": "credit_alphanum4"}, body)

	status, body = env.post(t, "/api/asset/trust", map[string]string{
		"secretKey": holder.SecretKey, "assetCode": "USD", "issuerPublicKey": issuer.PublicKey, "limit": "1000",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["successful"])

	status, body = env.post(t, "/api/asset/issue", map[string]string{
		"issuerSecretKey": issuer.SecretKey, "destinationPublicKey": holder.PublicKey, "assetCode": "USD", "amount": "100",
	})
	require.Equal(t, http.StatusOK, status, body)

	_, details := env.get(t, "/api/account/"+holder.PublicKey)
	usd := usdBalances(details, issuer.PublicKey)
	require.Len(t, usd, 1)
	assert.Equal(t, "100.0000000", usd[0]["balance"])

	status, body = env.post(t, "/api/payment", map[string]string{
		"senderSecretKey": holder.SecretKey, "receiverPublicKey": issuer.PublicKey,
		"amount": "50", "asset": "USD", "issuer": issuer.PublicKey, "memo": "refund",
	})
	require.Equal(t, http.StatusOK, status, body)

	_, details = env.get(t, "/api/account/"+holder.PublicKey)
	assert.Equal(t, "50.0000000", usdBalances(details, issuer.PublicKey)[0]["balance"])
	transactions := details["transactions"].([]any)
	require.Len(t, transactions, 3)
	assert.Equal(t, "refund", transactions[0].(map[string]any)["memo"])
}

func TestNumericAmountsAccepted(t *testing.T) {
	env := newTestEnv(t, nil)
	issuer, holder := env.createAccount(t), env.createAccount(t)

	status, body := env.post(t, "/api/asset/trust", map[string]any{
		"secretKey": holder.SecretKey, "assetCode": "USD", "issuerPublicKey": issuer.PublicKey, "limit": 1000,
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = env.post(t, "/api/asset/issue", map[string]any{
		"issuerSecretKey": issuer.SecretKey, "destinationPublicKey": holder.PublicKey, "assetCode": "USD", "amount": 100,
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = env.post(t, "/api/payment", map[string]any{
		"senderSecretKey": holder.SecretKey, "receiverPublicKey": issuer.PublicKey,
		"amount": 12.5, "asset": "USD", "issuer": issuer.PublicKey,
	})
	require.Equal(t, http.StatusOK, status, body)

	_, details := env.get(t, "/api/account/"+holder.PublicKey)
	usd := usdBalances(details, issuer.PublicKey)
	require.Len(t, usd, 1)
	assert.Equal(t, "87.5000000", usd[0]["balance"])

	status, body = env.post(t, "/api/payment", map[string]any{
		"senderSecretKey": holder.SecretKey, "receiverPublicKey": issuer.PublicKey, "amount": true,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestTransactionFailuresAre500(t *testing.T) {
	env := newTestEnv(t, nil)
	sender, receiver := env.createAccount(t), env.createAccount(t)

	status, body := env.post(t, "/api/payment", map[string]string{
		"senderSecretKey": sender.SecretKey, "receiverPublicKey": receiver.PublicKey, "amount": "50000",
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "SUBMISSION_FAILED", body["code"])
	assert.Equal(t, "tx_failed: op_underfunded", body["remote_code"])

	status, body = env.post(t, "/api/payment", map[string]string{
		"senderSecretKey": sender.SecretKey, "receiverPublicKey": receiver.PublicKey, "amount": "1",
		"memo": strings.Repeat("x", 29),
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "MEMO_TOO_LONG", body["code"])

	status, body = env.post(t, "/api/asset/create", map[string]string{
		"assetCode": "WAY-TOO-LONG-CODE", "issuerPublicKey": sender.PublicKey,
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INVALID_ASSET", body["code"])

	status, body = env.get(t, "/api/account/"+keypair.MustRandom().Address())
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", body["code"])
}

func TestAssetRoutesValidatePresence(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.post(t, "/api/asset/create", map[string]string{"assetCode": "USD"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Asset code and issuer public key are required", body["error"])

	status, _ = env.post(t, "/api/asset/trust", map[string]string{"assetCode": "USD"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.post(t, "/api/asset/issue", map[string]string{"assetCode": "USD"})
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Zero(t, env.ledger.calls.Load())
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get("X-Request-Id"), 36)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "trace-me")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-me", resp.Header.Get("X-Request-Id"))

	env.createAccount(t)

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `stellarpay_http_requests_total{method="POST",route="/api/account/create",status="200"} 1`)
}

// feedObserver delivers events pushed onto feed.
type feedObserver struct {
	handlers observer.Handlers
	feed     chan observer.PaymentEvent
	stop     chan struct{}
	once     sync.Once
}

func newFeedObserver() *feedObserver {
	return &feedObserver{feed: make(chan observer.PaymentEvent, 4), stop: make(chan struct{})}
}

func (f *feedObserver) OnPayment(h observer.PaymentHandler, filters ...observer.PaymentFilter) {
	f.handlers.Add(h, filters...)
}

func (f *feedObserver) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.stop:
			return nil
		case evt := <-f.feed:
			f.handlers.Dispatch(evt, quietLogger())
		}
	}
}

func (f *feedObserver) Stop() error {
	f.once.Do(func() { close(f.stop) })
	return nil
}

func TestStreamForwardsPayments(t *testing.T) {
	feed := newFeedObserver()
	watched := make(chan string, 1)
	env := newTestEnv(t, nil, WithStreams(func(publicKey string) observer.Observer {
		watched <- publicKey
		return feed
	}))

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/account/GWATCHED/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	feed.feed <- observer.PaymentEvent{ID: "1", From: "GOTHER", To: "GWATCHED", Asset: "native", Amount: "5.0000000"}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt observer.PaymentEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "GWATCHED", <-watched)
	assert.Equal(t, "5.0000000", evt.Amount)
	assert.Equal(t, "GOTHER", evt.From)
}

func TestStreamDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.get(t, "/api/account/GWATCHED/stream")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "STREAM_ERROR", body["code"])
}
