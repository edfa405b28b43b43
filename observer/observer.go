// Package observer watches an account's payments as they land on the ledger and
// surfaces them through typed handlers with filters. It is the push-based alternative
// to re-fetching account details on a timer.
//
// Example usage:
//
//	obs := observer.NewHorizonObserver(
//	    horizonclient.DefaultTestNetClient,
//	    "GBBD47UZQ...",
//	    observer.WithCursor("now"),
//	)
//
//	obs.OnPayment(func(evt observer.PaymentEvent) error {
//	    log.Printf("%s sent %s %s to %s", evt.From, evt.Amount, evt.Asset, evt.To)
//	    return nil
//	}, observer.WithAsset("native"))
//
//	if err := obs.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package observer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/amount"
)

// PaymentEvent is a payment that touched the watched account.
type PaymentEvent struct {
	// ID is the unique operation ID.
	ID string `json:"id"`

	// From is the account that sent the payment.
	From string `json:"from"`

	// To is the account that received the payment.
	To string `json:"to"`

	// Asset is "native" or "CODE:ISSUER".
	Asset string `json:"asset"`

	// Amount is the payment amount with seven decimals (e.g., "100.0000000").
	Amount string `json:"amount"`

	// Memo is the transaction memo, if the source knows it.
	Memo string `json:"memo,omitempty"`

	// Cursor is the paging token of this payment, used to resume a stream.
	Cursor string `json:"cursor"`

	// TransactionHash is the hash of the enclosing transaction.
	TransactionHash string `json:"transaction_hash"`
}

// PaymentHandler processes a PaymentEvent. Errors are logged and streaming continues.
type PaymentHandler func(PaymentEvent) error

// PaymentFilter decides whether a handler sees an event.
type PaymentFilter func(PaymentEvent) bool

// Observer streams payment events to registered handlers.
type Observer interface {
	// OnPayment registers a handler. Filters are ANDed together.
	// Handlers are called sequentially for each matching payment.
	OnPayment(handler PaymentHandler, filters ...PaymentFilter)

	// Start blocks, delivering events until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends streaming. It's safe to call Stop multiple times.
	Stop() error
}

type handlerEntry struct {
	handler PaymentHandler
	filters []PaymentFilter
}

// Handlers is a concurrency-safe handler registry shared by Observer implementations.
type Handlers struct {
	mu      sync.RWMutex
	entries []handlerEntry
}

// Add registers a handler with its filters.
func (h *Handlers) Add(handler PaymentHandler, filters ...PaymentFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, handlerEntry{handler: handler, filters: filters})
}

// Dispatch runs every handler whose filters all pass. Handler errors are logged.
func (h *Handlers) Dispatch(evt PaymentEvent, log *logrus.Entry) {
	h.mu.RLock()
	entries := h.entries
	h.mu.RUnlock()

	for _, entry := range entries {
		if !matches(evt, entry.filters) {
			continue
		}
		if err := entry.handler(evt); err != nil {
			log.WithError(err).WithField("payment", evt.ID).Warn("payment handler failed")
		}
	}
}

func matches(evt PaymentEvent, filters []PaymentFilter) bool {
	for _, filter := range filters {
		if !filter(evt) {
			return false
		}
	}
	return true
}

// WithAsset matches payments of one asset: "native" or "CODE:ISSUER".
func WithAsset(asset string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.Asset == asset
	}
}

// WithMinAmount matches payments of at least minAmount. Amounts are compared in
// stroops, so "10" and "10.0000000" are equal.
func WithMinAmount(minAmount string) PaymentFilter {
	min, err := amount.ParseInt64(minAmount)
	return func(evt PaymentEvent) bool {
		if err != nil {
			return false
		}
		got, perr := amount.ParseInt64(evt.Amount)
		return perr == nil && got >= min
	}
}

// WithAccount matches payments sent to or from accountID.
func WithAccount(accountID string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.From == accountID || evt.To == accountID
	}
}

// WithDestination matches payments sent to accountID.
func WithDestination(accountID string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.To == accountID
	}
}

// WithSource matches payments sent from accountID.
func WithSource(accountID string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.From == accountID
	}
}
