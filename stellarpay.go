// Package stellarpay provides the building blocks of a cross-border payment service on
// the Stellar network. It creates and imports accounts, moves native and issued assets
// between them, and manages the trustlines custom assets require, while delegating
// signing and ledger access to the Stellar SDK and a Horizon server.
package stellarpay

import (
	"context"
	"time"

	"github.com/stellar/go-stellar-sdk/txnbuild"
)

// NativeSymbol is the code callers use to request the network's base currency.
const NativeSymbol = "XLM"

// Signer is the minimal contract for authorizing transactions.
// The caller provides a Signer; the payment workflow uses it.
type Signer interface {
	// PublicKey returns the Stellar address (G...) identifying this signer.
	PublicKey() string

	// Sign appends this signer's signature to tx for the given network.
	Sign(ctx context.Context, tx *txnbuild.Transaction, networkPassphrase string) (*txnbuild.Transaction, error)
}

// Ledger is the remote ledger as seen by this service. Every call is a single
// best-effort round trip; implementations never retry or cache.
type Ledger interface {
	// LoadAccount returns the current state of an account, including its sequence number.
	LoadAccount(ctx context.Context, publicKey string) (*Account, error)

	// ListTransactions returns up to limit transactions for an account in the given order.
	ListTransactions(ctx context.Context, publicKey string, limit uint, order Order) ([]TransactionRecord, error)

	// BaseFee returns the base fee, in stroops, charged in the last closed ledger.
	BaseFee(ctx context.Context) (int64, error)

	// Submit sends a signed transaction and returns the ledger's verdict.
	Submit(ctx context.Context, tx *txnbuild.Transaction) (*TransactionResult, error)
}

// Faucet funds accounts on test networks.
type Faucet interface {
	Fund(ctx context.Context, publicKey string) error
}

// KeyStore holds the active keypair on the client side. Implementations decide how
// secret material is kept (memory only, sealed on disk, ...).
type KeyStore interface {
	// Save replaces the active keypair.
	Save(ctx context.Context, kp Keypair) error

	// Load returns the active keypair. ok is false when no keypair is stored.
	Load(ctx context.Context) (kp Keypair, ok bool, err error)

	// Delete forgets the active keypair.
	Delete(ctx context.Context) error
}

// Order is the sort direction for history queries.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Keypair is a Stellar address with its secret seed.
type Keypair struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
}

// Account is the ledger state of an account at load time.
type Account struct {
	ID       string
	Sequence int64
	Balances []Balance

	// Source is the SDK view of the account, used as a transaction source.
	Source txnbuild.Account
}

// Balance is one entry of an account's balance sheet, named the way Horizon names it.
type Balance struct {
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code,omitempty"`
	AssetIssuer string `json:"asset_issuer,omitempty"`
	Balance     string `json:"balance"`
	Limit       string `json:"limit,omitempty"`
}

// TransactionRecord is an entry of an account's transaction history.
type TransactionRecord struct {
	ID             string    `json:"id"`
	Hash           string    `json:"hash"`
	Ledger         int32     `json:"ledger"`
	CreatedAt      time.Time `json:"created_at"`
	SourceAccount  string    `json:"source_account"`
	FeeCharged     int64     `json:"fee_charged"`
	OperationCount int32     `json:"operation_count"`
	MemoType       string    `json:"memo_type"`
	Memo           string    `json:"memo,omitempty"`
	Successful     bool      `json:"successful"`
}

// TransactionResult is what the ledger assigns to an accepted transaction.
type TransactionResult struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	Ledger      int32  `json:"ledger"`
	Successful  bool   `json:"successful"`
	EnvelopeXDR string `json:"envelope_xdr"`
	ResultXDR   string `json:"result_xdr"`
	FeeCharged  int64  `json:"fee_charged"`
}

// AccountDetails is the balance sheet and recent history of an account.
type AccountDetails struct {
	Balances     []Balance           `json:"balances"`
	Transactions []TransactionRecord `json:"transactions"`
}
