package memory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/observer"
)

// Observer implements observer.Observer for payments applied to a Ledger. Like a
// Horizon stream started with cursor "now", it only reports payments made after Start.
type Observer struct {
	ledger   *Ledger
	account  string
	handlers observer.Handlers
	log      *logrus.Entry

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
}

// Observe returns an observer for payments to or from account.
func (l *Ledger) Observe(account string) *Observer {
	return &Observer{
		ledger:   l,
		account:  account,
		log:      logrus.WithFields(logrus.Fields{"component": "observer", "pubkey": account}),
		stopChan: make(chan struct{}),
	}
}

// OnPayment registers a handler for payment events with optional filters.
func (o *Observer) OnPayment(handler observer.PaymentHandler, filters ...observer.PaymentFilter) {
	o.handlers.Add(handler, filters...)
}

// Start delivers payments until ctx is cancelled or Stop is called.
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New(errors.LayerLedger, errors.STREAM_ERROR, "observer already running", nil)
	}
	o.running = true
	o.mu.Unlock()

	events := make(chan observer.PaymentEvent, 64)
	unsubscribe := o.ledger.subscribe(events)
	defer unsubscribe()

	watched := observer.WithAccount(o.account)
	for {
		select {
		case <-o.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-events:
			if watched(evt) {
				o.handlers.Dispatch(evt, o.log)
			}
		}
	}
}

// Stop ends streaming. It's safe to call Stop multiple times.
func (o *Observer) Stop() error {
	o.stopOnce.Do(func() {
		close(o.stopChan)
	})
	return nil
}

var _ observer.Observer = (*Observer)(nil)
