package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/client"
)

type payConfig struct {
	To     string
	Amount string
	Asset  string
	Issuer string
	Memo   string
}

func newPayCmd(a *app) *cobra.Command {
	var cfg payConfig

	payCmd := &cobra.Command{
		Use:   "pay",
		Short: "Send a payment from the active account",
		Long: `Send XLM or an issued asset from the active account.

Examples:
  # Send 25 XLM
  payctl pay --to GBRP... --amount 25

  # Send 10 USD issued by GCKF... with a memo
  payctl pay --to GBRP... --amount 10 --asset USD --issuer GCKF... --memo "invoice 7"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			secret, err := a.activeSecret(ctx)
			if err != nil {
				return err
			}

			result, err := a.client.SendPayment(ctx, client.PaymentParams{
				SenderSecretKey:   secret,
				ReceiverPublicKey: cfg.To,
				Amount:            cfg.Amount,
				Asset:             cfg.Asset,
				Issuer:            cfg.Issuer,
				Memo:              cfg.Memo,
			})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "Payment sent", result)
			return nil
		},
	}

	payCmd.Flags().StringVarP(&cfg.To, "to", "t", "", "receiver public key")
	payCmd.Flags().StringVarP(&cfg.Amount, "amount", "a", "", "amount to send")
	payCmd.Flags().StringVar(&cfg.Asset, "asset", stellarpay.NativeSymbol, "asset code")
	payCmd.Flags().StringVar(&cfg.Issuer, "issuer", "", "asset issuer, required for non-XLM assets")
	payCmd.Flags().StringVarP(&cfg.Memo, "memo", "m", "", "text memo")
	_ = payCmd.MarkFlagRequired("to")
	_ = payCmd.MarkFlagRequired("amount")
	return payCmd
}

func printResult(w io.Writer, title string, result *stellarpay.TransactionResult) {
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "  hash:   %s\n", result.Hash)
	fmt.Fprintf(w, "  ledger: %d\n", result.Ledger)
}
