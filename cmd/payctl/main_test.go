package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwen-abid/stellar-payments-go/account"
	"github.com/marwen-abid/stellar-payments-go/gateway"
	"github.com/marwen-abid/stellar-payments-go/observer"
	"github.com/marwen-abid/stellar-payments-go/payment"
	"github.com/marwen-abid/stellar-payments-go/store/memory"
)

var publicKeyPattern = regexp.MustCompile(`Public key: (G[A-Z2-7]{55})`)

type harness struct {
	gatewayURL string
	dir        string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	ledger := memory.NewLedger(network.TestNetworkPassphrase)
	srv := gateway.NewServer(
		account.NewManager(ledger, ledger, account.WithLogger(entry)),
		payment.NewWorkflow(ledger, payment.Config{NetworkPassphrase: network.TestNetworkPassphrase}, payment.WithLogger(entry)),
		gateway.WithLogger(entry),
		gateway.WithStreams(func(publicKey string) observer.Observer { return ledger.Observe(publicKey) }),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{gatewayURL: ts.URL, dir: t.TempDir()}
}

// run executes payctl with a per-wallet key store.
func (h *harness) run(t *testing.T, wallet string, args ...string) (string, error) {
	t.Helper()
	return h.runContext(context.Background(), t, wallet, args...)
}

func (h *harness) runContext(ctx context.Context, t *testing.T, wallet string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--gateway", h.gatewayURL,
		"--keystore", filepath.Join(h.dir, wallet+".db"),
		"--passphrase", "correct horse",
	}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (h *harness) create(t *testing.T, wallet string) string {
	t.Helper()
	out, err := h.run(t, wallet, "account", "create")
	require.NoError(t, err, out)
	m := publicKeyPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func TestAccountCommands(t *testing.T) {
	h := newHarness(t)
	pub := h.create(t, "alice")

	out, err := h.run(t, "alice", "account", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Account "+pub)
	assert.Contains(t, out, "10000.0000000")

	out, err = h.run(t, "alice", "account", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run(t, "alice", "account", "show")
	assert.ErrorContains(t, err, "no active account")
}

func TestPayAndAssetFlow(t *testing.T) {
	h := newHarness(t)
	issuer := h.create(t, "issuer")
	holder := h.create(t, "holder")

	out, err := h.run(t, "issuer", "asset", "create", "--code", "USD")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Asset USD:"+issuer)

	out, err = h.run(t, "holder", "asset", "trust", "--code", "USD", "--issuer", issuer, "--limit", "1000")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Trustline established")

	out, err = h.run(t, "issuer", "asset", "issue", "--code", "USD", "--to", holder, "--amount", "100")
	require.NoError(t, err, out)

	out, err = h.run(t, "holder", "pay", "--to", issuer, "--amount", "40", "--asset", "USD", "--issuer", issuer, "--memo", "refund")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Payment sent")

	out, err = h.run(t, "holder", "account", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "60.0000000")
	assert.Contains(t, out, "memo=refund")
}

func TestPayRequiresFlags(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alice")

	_, err := h.run(t, "alice", "pay", "--amount", "1")
	assert.ErrorContains(t, err, "to")
}

func TestPayWithoutIssuerFails(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alice")
	bob := h.create(t, "bob")

	_, err := h.run(t, "alice", "pay", "--to", bob, "--amount", "1", "--asset", "USD")
	assert.ErrorContains(t, err, "Issuer is required for non-XLM assets")
}

func TestWrongPassphrase(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alice")

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{
		"--gateway", h.gatewayURL,
		"--keystore", filepath.Join(h.dir, "alice.db"),
		"--passphrase", "battery staple",
		"account", "show",
	})
	assert.Error(t, cmd.Execute())
}

// syncWriter lets the test read output while the command is still writing it.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestWatchPrintsPayments(t *testing.T) {
	h := newHarness(t)
	alice := h.create(t, "alice")
	bob := h.create(t, "bob")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncWriter{}
	done := make(chan error, 1)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--gateway", h.gatewayURL, "watch", bob})
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching payments")
	}, 2*time.Second, 10*time.Millisecond)

	// The gateway subscribes after the handshake; keep paying until one shows up.
	require.Eventually(t, func() bool {
		if _, err := h.run(t, "alice", "pay", "--to", bob, "--amount", "1.5"); err != nil {
			return false
		}
		return strings.Contains(out.String(), "1.5000000 native received from "+alice)
	}, 3*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
