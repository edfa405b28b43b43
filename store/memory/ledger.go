package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go/amount"
	"github.com/stellar/go/strkey"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/observer"
)

const (
	// startingBalance matches what Friendbot gives new testnet accounts.
	startingBalance = 10_000 * amount.One
	genesisLedger   = int32(2)

	// friendbotAddress is reported as the funder of accounts created by Fund.
	friendbotAddress = "GAIH3ULLFQ4DGSECF2AR555KZ4KNDGEKN4AFI4SU2M7B43MGK3QJZNSR"
)

var maxTrustlineLimit = amount.StringFromInt64(math.MaxInt64)

type trustline struct {
	asset   stellarpay.Asset
	balance int64
	limit   int64
}

type ledgerAccount struct {
	id       string
	sequence int64
	native   int64
	lines    []*trustline
}

func (a *ledgerAccount) line(asset stellarpay.Asset) *trustline {
	for _, l := range a.lines {
		if l.asset.Equal(asset) {
			return l
		}
	}
	return nil
}

func (a *ledgerAccount) clone() *ledgerAccount {
	c := &ledgerAccount{id: a.id, sequence: a.sequence, native: a.native}
	for _, l := range a.lines {
		copied := *l
		c.lines = append(c.lines, &copied)
	}
	return c
}

type ledgerTx struct {
	record       stellarpay.TransactionRecord
	participants map[string]bool
}

// Ledger is an in-memory stand-in for a Horizon-fronted network. It implements both
// stellarpay.Ledger and stellarpay.Faucet, applying payments and trustline changes with
// the same sequence-number, trustline and balance rules the network enforces, and
// reporting failures with the network's result codes.
//
// It is suitable for offline demos and tests. Base reserves and liabilities are not
// modelled.
type Ledger struct {
	networkPassphrase string
	now               func() time.Time

	mu          sync.RWMutex
	accounts    map[string]*ledgerAccount
	history     []ledgerTx
	ledger      int32
	subscribers map[chan<- observer.PaymentEvent]struct{}
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the ledger close time source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates an empty ledger for the given network.
func NewLedger(networkPassphrase string, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		networkPassphrase: networkPassphrase,
		now:               time.Now,
		accounts:          make(map[string]*ledgerAccount),
		ledger:            genesisLedger,
		subscribers:       make(map[chan<- observer.PaymentEvent]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fund creates publicKey with the Friendbot starting balance.
func (l *Ledger) Fund(_ context.Context, publicKey string) error {
	if !strkey.IsValidEd25519PublicKey(publicKey) {
		return errors.New(errors.LayerAccount, errors.FUNDING_FAILED,
			fmt.Sprintf("invalid address %q", publicKey), nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[publicKey]; exists {
		return errors.New(errors.LayerAccount, errors.FUNDING_FAILED,
			"friendbot returned status 400: createAccountAlreadyExist", nil).With("account", publicKey)
	}

	l.ledger++
	l.accounts[publicKey] = &ledgerAccount{
		id:       publicKey,
		sequence: int64(l.ledger) << 32,
		native:   startingBalance,
	}
	l.publish(observer.PaymentEvent{
		ID:     fmt.Sprintf("%d", int64(l.ledger)<<32),
		From:   friendbotAddress,
		To:     publicKey,
		Asset:  stellarpay.AssetTypeNative,
		Amount: amount.StringFromInt64(startingBalance),
		Cursor: fmt.Sprintf("%d", int64(l.ledger)<<32),
	})
	return nil
}

// LoadAccount returns a snapshot of the account.
func (l *Ledger) LoadAccount(_ context.Context, publicKey string) (*stellarpay.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, exists := l.accounts[publicKey]
	if !exists {
		return nil, errors.New(errors.LayerLedger, errors.ACCOUNT_NOT_FOUND,
			fmt.Sprintf("account %s not found", publicKey), nil).With("account", publicKey)
	}

	balances := make([]stellarpay.Balance, 0, len(acct.lines)+1)
	for _, line := range acct.lines {
		balances = append(balances, stellarpay.Balance{
			AssetType:   line.asset.Type(),
			AssetCode:   line.asset.Code,
			AssetIssuer: line.asset.Issuer,
			Balance:     amount.StringFromInt64(line.balance),
			Limit:       amount.StringFromInt64(line.limit),
		})
	}
	balances = append(balances, stellarpay.Balance{
		AssetType: stellarpay.AssetTypeNative,
		Balance:   amount.StringFromInt64(acct.native),
	})

	return &stellarpay.Account{
		ID:       acct.id,
		Sequence: acct.sequence,
		Balances: balances,
		Source:   &txnbuild.SimpleAccount{AccountID: acct.id, Sequence: acct.sequence},
	}, nil
}

// ListTransactions returns transactions the account took part in.
func (l *Ledger) ListTransactions(_ context.Context, publicKey string, limit uint, order stellarpay.Order) ([]stellarpay.TransactionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, exists := l.accounts[publicKey]; !exists {
		return nil, errors.New(errors.LayerLedger, errors.ACCOUNT_NOT_FOUND,
			fmt.Sprintf("account %s not found", publicKey), nil).With("account", publicKey)
	}

	var records []stellarpay.TransactionRecord
	for _, tx := range l.history {
		if tx.participants[publicKey] {
			records = append(records, tx.record)
		}
	}
	if order == stellarpay.OrderDesc {
		sort.SliceStable(records, func(i, j int) bool { return records[i].Ledger > records[j].Ledger })
	}
	if limit > 0 && uint(len(records)) > limit {
		records = records[:limit]
	}
	return records, nil
}

// BaseFee always reports the network minimum.
func (l *Ledger) BaseFee(context.Context) (int64, error) {
	return txnbuild.MinBaseFee, nil
}

// Submit validates and applies tx atomically. Failed operations leave balances
// untouched but still consume the fee and sequence number, as on the network.
func (l *Ledger) Submit(_ context.Context, tx *txnbuild.Transaction) (*stellarpay.TransactionResult, error) {
	hash, err := tx.HashHex(l.networkPassphrase)
	if err != nil {
		return nil, txError("tx_malformed", err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return nil, txError("tx_malformed", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	source := tx.SourceAccount()
	acct, exists := l.accounts[source.AccountID]
	if !exists {
		return nil, txError("tx_no_source_account", nil)
	}
	if source.Sequence != acct.sequence+1 {
		return nil, txError("tx_bad_seq", nil)
	}
	if tb := tx.Timebounds(); tb.MaxTime != 0 && l.now().Unix() > tb.MaxTime {
		return nil, txError("tx_too_late", nil)
	}
	if !l.signedBy(tx, source.AccountID) {
		return nil, txError("tx_bad_auth", nil)
	}

	ops := tx.Operations()
	fee := tx.BaseFee() * int64(len(ops))
	if acct.native < fee {
		return nil, txError("tx_insufficient_balance", nil)
	}

	acct.native -= fee
	acct.sequence = source.Sequence
	l.ledger++

	record := stellarpay.TransactionRecord{
		ID:             hash,
		Hash:           hash,
		Ledger:         l.ledger,
		CreatedAt:      l.now().UTC(),
		SourceAccount:  source.AccountID,
		FeeCharged:     fee,
		OperationCount: int32(len(ops)),
		MemoType:       "none",
	}
	if memo, ok := tx.Memo().(txnbuild.MemoText); ok {
		record.MemoType = "text"
		record.Memo = string(memo)
	}

	participants := map[string]bool{source.AccountID: true}
	staged := make(map[string]*ledgerAccount)
	codes := make([]string, 0, len(ops))
	failed := false
	for _, op := range ops {
		code := l.apply(staged, source.AccountID, op, participants)
		codes = append(codes, code)
		if code != "op_success" {
			failed = true
			break
		}
	}

	record.Successful = !failed
	l.history = append(l.history, ledgerTx{record: record, participants: participants})

	if failed {
		remote := "tx_failed: " + strings.Join(codes, ", ")
		return nil, errors.NewSubmissionError(fmt.Sprintf("Transaction Failed (%s)", remote), remote, nil).
			With("hash", hash)
	}

	// Working copies were cloned after the fee was charged, so they replace the live accounts wholesale.
	for id, a := range staged {
		l.accounts[id] = a
	}

	for i, op := range ops {
		p, ok := op.(*txnbuild.Payment)
		if !ok {
			continue
		}
		from := source.AccountID
		if p.SourceAccount != "" {
			from = p.SourceAccount
		}
		units, _ := amount.ParseInt64(p.Amount)
		id := fmt.Sprintf("%d", int64(l.ledger)<<32+int64(i+1))
		l.publish(observer.PaymentEvent{
			ID:              id,
			From:            from,
			To:              p.Destination,
			Asset:           stellarpay.AssetFromTxnbuild(p.Asset).String(),
			Amount:          amount.StringFromInt64(units),
			Memo:            record.Memo,
			Cursor:          id,
			TransactionHash: hash,
		})
	}

	return &stellarpay.TransactionResult{
		ID:          hash,
		Hash:        hash,
		Ledger:      l.ledger,
		Successful:  true,
		EnvelopeXDR: envelope,
		FeeCharged:  fee,
	}, nil
}

// staged returns a working copy of the account, cloning it on first touch.
func (l *Ledger) staged(staged map[string]*ledgerAccount, id string) *ledgerAccount {
	if a, ok := staged[id]; ok {
		return a
	}
	live, ok := l.accounts[id]
	if !ok {
		return nil
	}
	a := live.clone()
	staged[id] = a
	return a
}

func (l *Ledger) apply(staged map[string]*ledgerAccount, txSource string, op txnbuild.Operation, participants map[string]bool) string {
	switch o := op.(type) {
	case *txnbuild.Payment:
		from := txSource
		if o.SourceAccount != "" {
			from = o.SourceAccount
		}
		participants[from] = true
		participants[o.Destination] = true
		return l.applyPayment(staged, from, o)
	case *txnbuild.ChangeTrust:
		from := txSource
		if o.SourceAccount != "" {
			from = o.SourceAccount
		}
		return l.applyChangeTrust(staged, from, o)
	default:
		return "op_not_supported"
	}
}

func (l *Ledger) applyPayment(staged map[string]*ledgerAccount, from string, op *txnbuild.Payment) string {
	units, err := amount.ParseInt64(op.Amount)
	if err != nil || units <= 0 {
		return "op_malformed"
	}
	src := l.staged(staged, from)
	if src == nil {
		return "op_no_source_account"
	}
	dst := l.staged(staged, op.Destination)
	if dst == nil {
		return "op_no_destination"
	}

	asset := stellarpay.AssetFromTxnbuild(op.Asset)
	if asset.IsNative() {
		if src.native < units {
			return "op_underfunded"
		}
		src.native -= units
		dst.native += units
		return "op_success"
	}

	// The issuer mints and burns its own asset.
	if src.id != asset.Issuer {
		line := src.line(asset)
		if line == nil {
			return "op_src_no_trust"
		}
		if line.balance < units {
			return "op_underfunded"
		}
		line.balance -= units
	}
	if dst.id != asset.Issuer {
		line := dst.line(asset)
		if line == nil {
			return "op_no_trust"
		}
		if line.limit-line.balance < units {
			return "op_line_full"
		}
		line.balance += units
	}
	return "op_success"
}

func (l *Ledger) applyChangeTrust(staged map[string]*ledgerAccount, from string, op *txnbuild.ChangeTrust) string {
	if op.Line == nil || op.Line.IsNative() {
		return "op_malformed"
	}
	asset := stellarpay.Asset{Code: op.Line.GetCode(), Issuer: op.Line.GetIssuer()}
	if asset.Issuer == from {
		return "op_self_not_allowed"
	}

	limitText := op.Limit
	if limitText == "" {
		limitText = maxTrustlineLimit
	}
	limit, err := amount.ParseInt64(limitText)
	if err != nil || limit < 0 {
		return "op_malformed"
	}

	if _, issuerExists := l.accounts[asset.Issuer]; !issuerExists {
		return "op_no_issuer"
	}
	acct := l.staged(staged, from)
	if acct == nil {
		return "op_no_source_account"
	}

	line := acct.line(asset)
	switch {
	case line == nil && limit == 0:
		return "op_invalid_limit"
	case line == nil:
		acct.lines = append(acct.lines, &trustline{asset: asset, limit: limit})
	case limit < line.balance:
		return "op_invalid_limit"
	case limit == 0:
		kept := acct.lines[:0]
		for _, tl := range acct.lines {
			if tl != line {
				kept = append(kept, tl)
			}
		}
		acct.lines = kept
	default:
		line.limit = limit
	}
	return "op_success"
}

func (l *Ledger) signedBy(tx *txnbuild.Transaction, address string) bool {
	kp, err := keypair.ParseAddress(address)
	if err != nil {
		return false
	}
	hash, err := tx.Hash(l.networkPassphrase)
	if err != nil {
		return false
	}
	for _, sig := range tx.Signatures() {
		if kp.Verify(hash[:], sig.Signature) == nil {
			return true
		}
	}
	return false
}

// subscribe registers ch for every payment applied from now on.
func (l *Ledger) subscribe(ch chan<- observer.PaymentEvent) func() {
	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subscribers, ch)
		l.mu.Unlock()
	}
}

// publish hands evt to subscribers without blocking. Callers hold l.mu.
func (l *Ledger) publish(evt observer.PaymentEvent) {
	for ch := range l.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func txError(code string, cause error) error {
	return errors.NewSubmissionError(fmt.Sprintf("Transaction Failed (%s)", code), code, cause)
}

var (
	_ stellarpay.Ledger = (*Ledger)(nil)
	_ stellarpay.Faucet = (*Ledger)(nil)
)
