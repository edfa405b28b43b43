package main

import (
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/observer"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [public-key]",
		Short: "Print payments to and from an account as they happen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			publicKey, err := a.activePublicKey(ctx, args)
			if err != nil {
				return err
			}

			url := a.client.StreamURL(publicKey)
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return errors.New(errors.LayerClient, errors.STREAM_ERROR, "failed to open payment stream", err)
			}
			defer conn.Close()

			go func() {
				<-ctx.Done()
				conn.Close()
			}()

			a.log.WithField("url", url).Debug("payment stream opened")
			fmt.Fprintf(cmd.OutOrStdout(), "Watching payments for %s\n", publicKey)

			for {
				var evt observer.PaymentEvent
				if err := conn.ReadJSON(&evt); err != nil {
					if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return errors.New(errors.LayerClient, errors.STREAM_ERROR, "payment stream ended", err)
				}
				printEvent(cmd.OutOrStdout(), publicKey, evt)
			}
		},
	}
}

func printEvent(w io.Writer, publicKey string, evt observer.PaymentEvent) {
	direction, counterparty := "received from", evt.From
	if evt.From == publicKey {
		direction, counterparty = "sent to", evt.To
	}
	line := fmt.Sprintf("%s %s %s %s", evt.Amount, evt.Asset, direction, counterparty)
	if evt.Memo != "" {
		line += fmt.Sprintf(" (memo %q)", evt.Memo)
	}
	fmt.Fprintln(w, line)
}
