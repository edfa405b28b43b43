// Package payment assembles ledger operations into signed, network-ready transactions
// and submits them.
//
// A Workflow builds every transaction the same way: load the source account, bind the
// fee and network, attach the memo, append the operations in caller order, bound the
// validity window, sign, then submit exactly once. Submission failures carry the
// ledger's result codes untouched.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/txnbuild"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/errors"
)

const (
	// DefaultTimeout is the validity window of a built transaction.
	DefaultTimeout = 30 * time.Second

	// MaxMemoLength is the byte limit of a text memo.
	MaxMemoLength = 28
)

// Config fixes how transactions are built. Zero values select the defaults.
type Config struct {
	NetworkPassphrase string

	// BaseFee is the per-operation fee in stroops. Defaults to txnbuild.MinBaseFee.
	BaseFee int64

	// DynamicFee makes every build ask the ledger for the last closed ledger's base fee.
	DynamicFee bool

	// Timeout is the default validity window. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Workflow builds, signs and submits transactions against a Ledger.
type Workflow struct {
	ledger stellarpay.Ledger
	config Config
	log    *logrus.Entry
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the workflow logger.
func WithLogger(log *logrus.Entry) Option {
	return func(w *Workflow) {
		w.log = log
	}
}

// NewWorkflow creates a Workflow for the given ledger.
func NewWorkflow(ledger stellarpay.Ledger, config Config, opts ...Option) *Workflow {
	if config.BaseFee < txnbuild.MinBaseFee {
		config.BaseFee = txnbuild.MinBaseFee
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	w := &Workflow{
		ledger: ledger,
		config: config,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithField("component", "payment")
	return w
}

// NetworkPassphrase returns the network the workflow signs for.
func (w *Workflow) NetworkPassphrase() string {
	return w.config.NetworkPassphrase
}

// Request describes one transaction.
type Request struct {
	Signer     stellarpay.Signer
	Operations []txnbuild.Operation

	// Memo is attached as a text memo when non-empty.
	Memo string

	// Timeout overrides the configured validity window when positive.
	Timeout time.Duration
}

// Build loads the signer's account and returns the signed transaction. It never submits.
func (w *Workflow) Build(ctx context.Context, req Request) (*txnbuild.Transaction, error) {
	if req.Signer == nil {
		return nil, errors.NewValidationError(errors.LayerPayment, "signer", "a signer is required")
	}
	source := req.Signer.PublicKey()
	log := w.log.WithField("pubkey", source)

	account, err := w.ledger.LoadAccount(ctx, source)
	if err != nil {
		return nil, err
	}

	fee := w.baseFee(ctx, log)

	var memo txnbuild.Memo
	if req.Memo != "" {
		if len(req.Memo) > MaxMemoLength {
			return nil, errors.New(errors.LayerPayment, errors.MEMO_TOO_LONG,
				fmt.Sprintf("memo is %d bytes, the limit is %d", len(req.Memo), MaxMemoLength), nil).
				With("memo", req.Memo)
		}
		memo = txnbuild.MemoText(req.Memo)
	}

	timeout := w.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        account.Source,
		IncrementSequenceNum: true,
		BaseFee:              fee,
		Memo:                 memo,
		Operations:           req.Operations,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(int64(timeout.Seconds())),
		},
	})
	if err != nil {
		return nil, errors.New(errors.LayerPayment, errors.TRANSACTION_BUILD_FAILED,
			"failed to build transaction", err).With("account", source)
	}

	signed, err := req.Signer.Sign(ctx, tx, w.config.NetworkPassphrase)
	if err != nil {
		return nil, errors.New(errors.LayerPayment, errors.SIGNING_FAILED,
			"failed to sign transaction", err).With("account", source)
	}

	log.WithFields(logrus.Fields{
		"operations": len(req.Operations),
		"fee":        fee,
		"sequence":   signed.SourceAccount().Sequence,
	}).Debug("transaction built")
	return signed, nil
}

// Submit sends a signed transaction once. The ledger's error is returned unchanged.
func (w *Workflow) Submit(ctx context.Context, tx *txnbuild.Transaction) (*stellarpay.TransactionResult, error) {
	log := w.log.WithField("pubkey", tx.SourceAccount().AccountID)

	result, err := w.ledger.Submit(ctx, tx)
	if err != nil {
		log.WithError(err).Warn("transaction rejected")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"hash":   result.Hash,
		"ledger": result.Ledger,
	}).Info("transaction submitted")
	return result, nil
}

// BuildAndSubmit builds, signs and submits a transaction.
func (w *Workflow) BuildAndSubmit(ctx context.Context, req Request) (*stellarpay.TransactionResult, error) {
	tx, err := w.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	return w.Submit(ctx, tx)
}

func (w *Workflow) baseFee(ctx context.Context, log *logrus.Entry) int64 {
	if !w.config.DynamicFee {
		return w.config.BaseFee
	}
	fee, err := w.ledger.BaseFee(ctx)
	if err != nil {
		log.WithError(err).Warn("base fee unavailable, using configured fee")
		return w.config.BaseFee
	}
	if fee < w.config.BaseFee {
		return w.config.BaseFee
	}
	return fee
}
