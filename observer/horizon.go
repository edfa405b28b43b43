package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/base"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"

	"github.com/marwen-abid/stellar-payments-go/errors"
)

// HorizonObserver implements Observer by streaming one account's payment operations
// from Horizon. It tracks the cursor for resumability and reconnects with exponential
// backoff when the stream drops.
type HorizonObserver struct {
	client      horizonclient.ClientInterface
	account     string
	handlers    Handlers
	cursor      string
	cursorSaver func(string) error
	log         *logrus.Entry

	// Reconnection backoff settings
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
	running  bool
}

// ObserverOption is a function that configures a HorizonObserver.
type ObserverOption func(*HorizonObserver)

// WithCursor sets the starting cursor for streaming.
// Use "now" to start from the current ledger (skip historical payments).
// Use a specific paging_token to resume from a previous position.
func WithCursor(cursor string) ObserverOption {
	return func(h *HorizonObserver) {
		h.cursor = cursor
	}
}

// WithCursorSaver sets a callback that's called after each payment is processed.
func WithCursorSaver(saver func(string) error) ObserverOption {
	return func(h *HorizonObserver) {
		h.cursorSaver = saver
	}
}

// WithReconnectBackoff sets the initial and maximum backoff durations for reconnection.
// Default is 1s initial, 60s max with exponential growth.
func WithReconnectBackoff(initial, max time.Duration) ObserverOption {
	return func(h *HorizonObserver) {
		h.initialBackoff = initial
		h.maxBackoff = max
	}
}

// WithLogger sets the observer logger.
func WithLogger(log *logrus.Entry) ObserverOption {
	return func(h *HorizonObserver) {
		h.log = log
	}
}

// NewHorizonObserver creates an observer for the payments of account.
// The default cursor is "now" (skip historical payments), but can be overridden with WithCursor.
func NewHorizonObserver(client horizonclient.ClientInterface, account string, opts ...ObserverOption) *HorizonObserver {
	obs := &HorizonObserver{
		client:         client,
		account:        account,
		cursor:         "now",
		initialBackoff: 1 * time.Second,
		maxBackoff:     60 * time.Second,
		stopChan:       make(chan struct{}),
		log:            logrus.NewEntry(logrus.StandardLogger()),
	}

	for _, opt := range opts {
		opt(obs)
	}
	obs.log = obs.log.WithFields(logrus.Fields{"component": "observer", "pubkey": account})

	return obs
}

// Cursor returns the paging token of the last delivered payment.
func (h *HorizonObserver) Cursor() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// OnPayment registers a handler for payment events with optional filters.
func (h *HorizonObserver) OnPayment(handler PaymentHandler, filters ...PaymentFilter) {
	h.handlers.Add(handler, filters...)
}

// Start begins streaming payment operations from Horizon.
// This method blocks until the context is cancelled or Stop() is called.
func (h *HorizonObserver) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.New(errors.LayerLedger, errors.STREAM_ERROR, "observer already running", nil)
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	// Stop cancels the in-flight stream as well as the reconnect loop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := h.initialBackoff
	attempt := 0

	for {
		if done, err := h.stopped(ctx); done {
			return err
		}

		request := horizonclient.OperationRequest{
			ForAccount: h.account,
			Cursor:     h.Cursor(),
			Order:      horizonclient.OrderAsc,
		}

		err := h.client.StreamPayments(ctx, request, func(op operations.Operation) {
			backoff = h.initialBackoff
			attempt = 0

			evt := convertToPaymentEvent(op)
			if evt == nil {
				return
			}

			h.handlers.Dispatch(*evt, h.log)

			h.mu.Lock()
			h.cursor = evt.Cursor
			h.mu.Unlock()

			if h.cursorSaver != nil {
				if err := h.cursorSaver(evt.Cursor); err != nil {
					h.log.WithError(err).Warn("failed to save cursor")
				}
			}
		})

		if done, stopErr := h.stopped(ctx); done {
			return stopErr
		}
		if err == nil {
			return nil
		}

		h.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff,
		}).Warn("payment stream dropped, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			_, stopErr := h.stopped(ctx)
			return stopErr
		}

		attempt++
		backoff = backoff * 2
		if backoff > h.maxBackoff {
			backoff = h.maxBackoff
		}
	}
}

// stopped reports whether streaming should end. Stop is a clean shutdown; a cancelled
// parent context is returned as its error.
func (h *HorizonObserver) stopped(ctx context.Context) (bool, error) {
	select {
	case <-h.stopChan:
		return true, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	return false, nil
}

// Stop gracefully stops streaming. It's safe to call Stop multiple times.
func (h *HorizonObserver) Stop() error {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	return nil
}

// convertToPaymentEvent converts a Horizon operation to a PaymentEvent.
// Returns nil if the operation does not move funds in a way we report.
func convertToPaymentEvent(op operations.Operation) *PaymentEvent {
	b := op.GetBase()

	evt := &PaymentEvent{
		ID:              b.ID,
		Cursor:          b.PT,
		TransactionHash: b.TransactionHash,
	}
	if b.Transaction != nil && b.Transaction.MemoType == "text" {
		evt.Memo = b.Transaction.Memo
	}

	switch o := op.(type) {
	case operations.Payment:
		evt.From = o.From
		evt.To = o.To
		evt.Amount = o.Amount
		evt.Asset = formatAsset(o.Asset)
	case operations.CreateAccount:
		// Friendbot funds new accounts with create_account.
		evt.From = o.Funder
		evt.To = o.Account
		evt.Amount = o.StartingBalance
		evt.Asset = "native"
	default:
		return nil
	}

	return evt
}

// formatAsset renders native as "native" and issued assets as "CODE:ISSUER".
func formatAsset(asset base.Asset) string {
	if asset.Type == "native" {
		return "native"
	}
	return fmt.Sprintf("%s:%s", asset.Code, asset.Issuer)
}

var _ Observer = (*HorizonObserver)(nil)
