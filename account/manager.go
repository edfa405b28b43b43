// Package account manages the lifecycle of ledger accounts: generating and funding new
// keypairs, importing existing ones from a secret, and reading balances and history.
package account

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/signers"
)

// RecentTransactions is how many history entries GetAccountDetails returns.
const RecentTransactions = 10

// Manager creates, funds, imports and inspects accounts.
type Manager struct {
	ledger   stellarpay.Ledger
	faucet   stellarpay.Faucet
	generate func() (stellarpay.Keypair, error)
	log      *logrus.Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithKeyGenerator replaces the keypair source used by CreateAccount.
func WithKeyGenerator(generate func() (stellarpay.Keypair, error)) Option {
	return func(m *Manager) {
		m.generate = generate
	}
}

// NewManager creates a Manager. faucet may be nil on networks without one, in which
// case CreateAccount and FundAccount report FUNDING_FAILED.
func NewManager(ledger stellarpay.Ledger, faucet stellarpay.Faucet, opts ...Option) *Manager {
	m := &Manager{
		ledger:   ledger,
		faucet:   faucet,
		generate: signers.Random,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "account")
	return m
}

// CreateAccount generates a keypair and funds it through the faucet.
//
// When funding fails the generated keypair is still returned together with a
// FUNDING_FAILED error, so the caller can keep the keys and retry with FundAccount.
// A zero Keypair is returned only when generation itself fails.
func (m *Manager) CreateAccount(ctx context.Context) (stellarpay.Keypair, error) {
	kp, err := m.generate()
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.New(errors.LayerAccount, errors.KEYPAIR_GENERATION_FAILED, "failed to generate keypair", err)
		}
		return stellarpay.Keypair{}, err
	}

	log := m.log.WithField("pubkey", kp.PublicKey)
	if err := m.FundAccount(ctx, kp.PublicKey); err != nil {
		log.WithError(err).Warn("account generated but not funded")
		return kp, err
	}

	log.Info("account created")
	return kp, nil
}

// FundAccount asks the faucet to create and fund publicKey.
func (m *Manager) FundAccount(ctx context.Context, publicKey string) error {
	if strings.TrimSpace(publicKey) == "" {
		return errors.NewValidationError(errors.LayerAccount, "publicKey", "Public key is required")
	}
	if m.faucet == nil {
		return errors.New(errors.LayerAccount, errors.FUNDING_FAILED, "no faucet configured for this network", nil)
	}
	if err := m.faucet.Fund(ctx, publicKey); err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.New(errors.LayerAccount, errors.FUNDING_FAILED, "Failed to create and fund account", err)
		}
		return err
	}
	m.log.WithField("pubkey", publicKey).Debug("account funded")
	return nil
}

// ImportAccount recovers the keypair of secretKey. It makes no network calls, so the
// account may not exist on the ledger yet. Anything that does not decode as a seed,
// blank input included, is INVALID_SECRET.
func (m *Manager) ImportAccount(secretKey string) (stellarpay.Keypair, error) {
	kp, err := signers.ParseSecret(secretKey)
	if err != nil {
		return stellarpay.Keypair{}, err
	}
	return stellarpay.Keypair{PublicKey: kp.Address(), SecretKey: kp.Seed()}, nil
}

// GetAccountDetails returns the account's balances and its most recent transactions,
// newest first.
func (m *Manager) GetAccountDetails(ctx context.Context, publicKey string) (*stellarpay.AccountDetails, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, errors.NewValidationError(errors.LayerAccount, "publicKey", "Public key is required")
	}

	account, err := m.ledger.LoadAccount(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	records, err := m.ledger.ListTransactions(ctx, publicKey, RecentTransactions, stellarpay.OrderDesc)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []stellarpay.TransactionRecord{}
	}

	return &stellarpay.AccountDetails{
		Balances:     account.Balances,
		Transactions: records,
	}, nil
}
