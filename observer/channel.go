package observer

import (
	"context"
)

// Subscribe starts obs in the background and delivers matching events on the returned
// channel. The channel is closed once obs stops. Events are dropped while the consumer
// is more than buffer events behind, so a slow reader never stalls the stream.
//
// The returned error channel receives the result of obs.Start.
func Subscribe(ctx context.Context, obs Observer, buffer int, filters ...PaymentFilter) (<-chan PaymentEvent, <-chan error) {
	events := make(chan PaymentEvent, buffer)
	done := make(chan error, 1)

	obs.OnPayment(func(evt PaymentEvent) error {
		select {
		case events <- evt:
		default:
		}
		return nil
	}, filters...)

	go func() {
		defer close(events)
		done <- obs.Start(ctx)
		close(done)
	}()

	return events, done
}
