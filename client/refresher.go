package client

import (
	"context"
	"time"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
)

// DefaultRefreshInterval is how often a Refresher re-reads account details by default.
const DefaultRefreshInterval = 30 * time.Second

// DetailsFetcher reads account details. *Client implements it.
type DetailsFetcher interface {
	AccountDetails(ctx context.Context, publicKey string) (*stellarpay.AccountDetails, error)
}

// Refresher re-reads one account's details on a fixed interval. Failed reads are
// reported and the next tick tries again; there is no backoff.
type Refresher struct {
	fetcher   DetailsFetcher
	publicKey string
	interval  time.Duration
	onUpdate  func(*stellarpay.AccountDetails)
	onError   func(error)
}

// NewRefresher creates a Refresher. A non-positive interval selects
// DefaultRefreshInterval. onError may be nil.
func NewRefresher(fetcher DetailsFetcher, publicKey string, interval time.Duration, onUpdate func(*stellarpay.AccountDetails), onError func(error)) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Refresher{
		fetcher:   fetcher,
		publicKey: publicKey,
		interval:  interval,
		onUpdate:  onUpdate,
		onError:   onError,
	}
}

// Run fetches immediately, then once per interval, until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refresh(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	details, err := r.fetcher.AccountDetails(ctx, r.publicKey)
	if err != nil {
		if ctx.Err() == nil {
			r.onError(err)
		}
		return
	}
	r.onUpdate(details)
}
