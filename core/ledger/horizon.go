// Package ledger adapts a Horizon server to the stellarpay.Ledger contract.
//
// Each method is a single round trip: there is no retry, caching or circuit breaking.
// horizonclient requests take no context, so a request already in flight runs to
// completion; the context is checked before each call and a cancelled one never
// reaches Horizon.
// Horizon failures are translated into tagged errors here, with the remote result codes
// passed through as opaque text.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go-stellar-sdk/txnbuild"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	payerrors "github.com/marwen-abid/stellar-payments-go/errors"
)

// Horizon implements stellarpay.Ledger using a Horizon client.
type Horizon struct {
	client horizonclient.ClientInterface
	log    *logrus.Entry
}

// Option configures a Horizon adapter.
type Option func(*Horizon)

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(h *Horizon) {
		h.log = log
	}
}

// New wraps an existing Horizon client. Tests pass a *horizonclient.MockClient.
func New(client horizonclient.ClientInterface, opts ...Option) *Horizon {
	h := &Horizon{
		client: client,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithField("component", "ledger")
	return h
}

// NewFromURL creates a Ledger backed by the Horizon server at horizonURL.
func NewFromURL(horizonURL string, opts ...Option) *Horizon {
	return New(&horizonclient.Client{HorizonURL: horizonURL}, opts...)
}

// LoadAccount fetches the account and its balances.
func (h *Horizon) LoadAccount(ctx context.Context, publicKey string) (*stellarpay.Account, error) {
	if err := cancelled(ctx, "load account"); err != nil {
		return nil, err
	}
	account, err := h.client.AccountDetail(horizonclient.AccountRequest{AccountID: publicKey})
	if err != nil {
		if isNotFound(err) {
			return nil, payerrors.New(payerrors.LayerLedger, payerrors.ACCOUNT_NOT_FOUND,
				fmt.Sprintf("account %s not found", publicKey), err).With("account", publicKey)
		}
		return nil, payerrors.New(payerrors.LayerLedger, payerrors.ACCOUNT_LOAD_FAILED,
			fmt.Sprintf("failed to load account %s", publicKey), errors.Wrap(err, "horizon account detail")).
			With("account", publicKey)
	}

	balances := make([]stellarpay.Balance, len(account.Balances))
	for i, b := range account.Balances {
		balances[i] = stellarpay.Balance{
			AssetType:   b.Type,
			AssetCode:   b.Code,
			AssetIssuer: b.Issuer,
			Balance:     b.Balance,
			Limit:       b.Limit,
		}
	}

	return &stellarpay.Account{
		ID:       account.AccountID,
		Sequence: account.Sequence,
		Balances: balances,
		Source:   &account,
	}, nil
}

// ListTransactions returns the latest transactions involving publicKey.
func (h *Horizon) ListTransactions(ctx context.Context, publicKey string, limit uint, order stellarpay.Order) ([]stellarpay.TransactionRecord, error) {
	if err := cancelled(ctx, "list transactions"); err != nil {
		return nil, err
	}
	page, err := h.client.Transactions(horizonclient.TransactionRequest{
		ForAccount: publicKey,
		Limit:      limit,
		Order:      horizonclient.Order(order),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, payerrors.New(payerrors.LayerLedger, payerrors.ACCOUNT_NOT_FOUND,
				fmt.Sprintf("account %s not found", publicKey), err).With("account", publicKey)
		}
		return nil, payerrors.New(payerrors.LayerLedger, payerrors.ACCOUNT_LOAD_FAILED,
			fmt.Sprintf("failed to fetch transactions for %s", publicKey), errors.Wrap(err, "horizon transactions")).
			With("account", publicKey)
	}

	records := make([]stellarpay.TransactionRecord, len(page.Embedded.Records))
	for i, tx := range page.Embedded.Records {
		records[i] = stellarpay.TransactionRecord{
			ID:             tx.ID,
			Hash:           tx.Hash,
			Ledger:         tx.Ledger,
			CreatedAt:      tx.LedgerCloseTime,
			SourceAccount:  tx.Account,
			FeeCharged:     tx.FeeCharged,
			OperationCount: tx.OperationCount,
			MemoType:       tx.MemoType,
			Memo:           tx.Memo,
			Successful:     tx.Successful,
		}
	}
	return records, nil
}

// BaseFee returns the last ledger's base fee, never less than the network minimum.
func (h *Horizon) BaseFee(ctx context.Context) (int64, error) {
	if err := cancelled(ctx, "fetch fee stats"); err != nil {
		return 0, err
	}
	stats, err := h.client.FeeStats()
	if err != nil {
		return 0, payerrors.New(payerrors.LayerLedger, payerrors.NETWORK_ERROR,
			"failed to fetch fee stats", err)
	}
	if stats.LastLedgerBaseFee < txnbuild.MinBaseFee {
		return txnbuild.MinBaseFee, nil
	}
	return stats.LastLedgerBaseFee, nil
}

// Submit sends a signed transaction to Horizon.
func (h *Horizon) Submit(ctx context.Context, tx *txnbuild.Transaction) (*stellarpay.TransactionResult, error) {
	if err := cancelled(ctx, "submit transaction"); err != nil {
		return nil, err
	}
	resp, err := h.client.SubmitTransaction(tx)
	if err != nil {
		remote := resultCodes(err)
		h.log.WithError(err).WithField("result_codes", remote).Warn("transaction rejected")
		return nil, payerrors.NewSubmissionError(submissionMessage(err, remote), remote, err)
	}
	return resultFromHorizon(resp), nil
}

func cancelled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return payerrors.New(payerrors.LayerLedger, payerrors.NETWORK_ERROR, op+": request cancelled", err)
	}
	return nil
}

func resultFromHorizon(tx hProtocol.Transaction) *stellarpay.TransactionResult {
	return &stellarpay.TransactionResult{
		ID:          tx.ID,
		Hash:        tx.Hash,
		Ledger:      tx.Ledger,
		Successful:  tx.Successful,
		EnvelopeXDR: tx.EnvelopeXdr,
		ResultXDR:   tx.ResultXdr,
		FeeCharged:  tx.FeeCharged,
	}
}

func isNotFound(err error) bool {
	if horizonclient.IsNotFoundError(err) {
		return true
	}
	herr := horizonclient.GetError(err)
	return herr != nil && herr.Problem.Status == 404
}

// resultCodes renders Horizon's result codes as "tx_code: op_code, op_code".
// Returns "" when the error carries none.
func resultCodes(err error) string {
	herr := horizonclient.GetError(err)
	if herr == nil {
		return ""
	}
	codes, cerr := herr.ResultCodes()
	if cerr != nil || codes == nil {
		return ""
	}
	code := codes.TransactionCode
	if codes.InnerTransactionCode != "" {
		code += "/" + codes.InnerTransactionCode
	}
	if len(codes.OperationCodes) > 0 {
		code += ": " + strings.Join(codes.OperationCodes, ", ")
	}
	return code
}

func submissionMessage(err error, remote string) string {
	if herr := horizonclient.GetError(err); herr != nil && herr.Problem.Title != "" {
		if remote != "" {
			return fmt.Sprintf("%s (%s)", herr.Problem.Title, remote)
		}
		return herr.Problem.Title
	}
	return err.Error()
}
